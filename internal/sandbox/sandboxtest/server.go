// Package sandboxtest runs a complete sandbox backend on in-memory storage
// for end-to-end tests.
package sandboxtest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scanorder/internal/config"
	"scanorder/internal/extractor/fixture"
	"scanorder/internal/handler"
	"scanorder/internal/port"
	"scanorder/internal/repository/memory"
	"scanorder/internal/router"
	"scanorder/internal/sandbox"
	"scanorder/internal/service"
	memstorage "scanorder/internal/storage/memory"
)

const bucket = "sandbox-test"

// Server is a running sandbox. Documents and Orders expose its state.
type Server struct {
	*httptest.Server
	Documents *memory.DocumentRepo
	Orders    *memory.OrderRepo
	Hub       *sandbox.Hub
}

// Options tweaks the sandbox.
type Options struct {
	// Extractor replaces the built-in fixture extractor.
	Extractor port.InvoiceExtractor
	// StageDelay slows each progress step.
	StageDelay  time.Duration
	MaxUploadMB int
	Logger      *zap.Logger
}

// New starts a sandbox with the built-in fixture extractor. It is shut down
// when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	return NewWithOptions(t, Options{})
}

// NewWithOptions starts a sandbox configured by opts.
func NewWithOptions(t testing.TB, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	zl := opts.Logger
	if zl == nil {
		zl = zap.NewNop()
	}
	extractor := opts.Extractor
	if extractor == nil {
		fx, err := fixture.New("")
		if err != nil {
			t.Fatalf("loading fixture extractor: %v", err)
		}
		extractor = fx
	}
	maxMB := opts.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 20
	}

	docs := memory.NewDocumentRepo()
	orders := memory.NewOrderRepo(1)
	storage := memstorage.NewStore()
	hub := sandbox.NewHub(sandbox.DefaultSubscriberBuffer, zl)

	worker := service.NewExtractionWorker(docs, storage, extractor, hub, service.ExtractionQueueConfig{
		Bucket:      bucket,
		Concurrency: 2,
		QueueSize:   16,
		StageDelay:  opts.StageDelay,
		JobTimeout:  30 * time.Second,
	}, zl)
	documentSvc := service.NewDocumentService(docs, orders, storage, worker, service.DocumentServiceConfig{
		Bucket:      bucket,
		MaxUploadMB: maxMB,
	}, zl)

	r := router.Setup(&config.Config{}, zl,
		handler.NewDocumentHandler(documentSvc, hub, handler.DefaultKeepAlive),
		handler.NewOrderHandler(service.NewOrderService(orders)),
		handler.NewHealthHandler(nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
		cancel()
		<-workerDone
	})

	return &Server{Server: srv, Documents: docs, Orders: orders, Hub: hub}
}
