// Command sandbox runs a local extraction backend: it accepts scans, fakes
// the extraction pipeline with a fixture invoice and commits reviewed drafts
// as sales orders.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"scanorder/internal/config"
	"scanorder/internal/export"
	"scanorder/internal/extractor/fixture"
	"scanorder/internal/handler"
	"scanorder/internal/logger"
	"scanorder/internal/port"
	memrepo "scanorder/internal/repository/memory"
	"scanorder/internal/repository/postgres"
	"scanorder/internal/router"
	"scanorder/internal/sandbox"
	"scanorder/internal/service"
	memstorage "scanorder/internal/storage/memory"
	s3storage "scanorder/internal/storage/s3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	var (
		db        *sqlx.DB
		docRepo   port.DocumentRepository
		orderRepo port.OrderRepository
	)
	if cfg.DB.Enabled {
		db, err = postgres.NewDB(ctx, &cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		docRepo = postgres.NewDocumentRepo(db)
		orderRepo = postgres.NewOrderRepo(db)
	} else {
		docRepo = memrepo.NewDocumentRepo()
		orderRepo = memrepo.NewOrderRepo(1)
	}

	// Initialize storage
	var storage port.ObjectStorage
	if cfg.S3.Enabled {
		storage, err = s3storage.NewScanStore(ctx, &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	} else {
		storage = memstorage.NewStore()
	}

	if cfg.Seed.WorkbookPath != "" {
		if err := seedFromWorkbook(ctx, cfg.Seed.WorkbookPath, orderRepo, zl); err != nil {
			return err
		}
	}

	extractor, err := fixture.New(cfg.Extraction.FixturePath)
	if err != nil {
		return fmt.Errorf("failed to load extraction fixture: %w", err)
	}

	hub := sandbox.NewHub(sandbox.DefaultSubscriberBuffer, zl.Named("hub"))

	// Initialize services
	worker := service.NewExtractionWorker(docRepo, storage, extractor, hub, service.ExtractionQueueConfig{
		Bucket:      cfg.S3.Bucket,
		Concurrency: cfg.Extraction.Concurrency,
		QueueSize:   cfg.Extraction.QueueSize,
		StageDelay:  cfg.Extraction.StageDelay,
	}, zl.Named("worker"))
	documentSvc := service.NewDocumentService(docRepo, orderRepo, storage, worker, service.DocumentServiceConfig{
		Bucket:      cfg.S3.Bucket,
		MaxUploadMB: int(cfg.Upload.MaxUploadMB),
	}, zl.Named("documents"))
	orderSvc := service.NewOrderService(orderRepo)

	// Initialize handlers
	documentH := handler.NewDocumentHandler(documentSvc, hub, handler.DefaultKeepAlive)
	orderH := handler.NewOrderHandler(orderSvc)
	healthH := handler.NewHealthHandler(db)

	r := router.Setup(cfg, zl, documentH, orderH, healthH)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		// Event streams stay open until extraction ends, so writes are unbounded.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		zl.Info("sandbox starting",
			zap.String("addr", cfg.Server.Port),
			zap.Bool("postgres", cfg.DB.Enabled),
			zap.Bool("s3", cfg.S3.Enabled),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("graceful shutdown timed out, closing open streams", zap.Error(err))
		_ = srv.Close()
	}
	stop()
	<-workerDone
	zl.Info("sandbox stopped")
	return nil
}

func seedFromWorkbook(ctx context.Context, path string, repo port.OrderRepository, zl *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening seed workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	orders, err := export.ReadWorkbook(f)
	if err != nil {
		return fmt.Errorf("reading seed workbook: %w", err)
	}
	if _, err := service.SeedOrders(ctx, repo, orders, zl.Named("seed")); err != nil {
		return err
	}
	return nil
}
