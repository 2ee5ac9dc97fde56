package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/port"
	"scanorder/internal/validator"
)

// ExtractionQueueConfig holds settings for the extraction worker.
type ExtractionQueueConfig struct {
	Bucket      string
	Concurrency int
	QueueSize   int
	// StageDelay is a pause after each published progress status.
	StageDelay time.Duration
	// JobTimeout bounds a single extraction.
	JobTimeout time.Duration
}

// ExtractionWorker runs queued documents through the extractor and publishes
// their progress on the push stream.
type ExtractionWorker struct {
	docRepo   port.DocumentRepository
	storage   port.ObjectStorage
	extractor port.InvoiceExtractor
	events    port.EventPublisher
	checks    *validator.Engine
	cfg       ExtractionQueueConfig
	logger    *zap.Logger

	queue chan int64
	wg    sync.WaitGroup
}

var _ port.ExtractionQueue = (*ExtractionWorker)(nil)

// NewExtractionWorker creates a new ExtractionWorker.
func NewExtractionWorker(
	docRepo port.DocumentRepository,
	storage port.ObjectStorage,
	extractor port.InvoiceExtractor,
	events port.EventPublisher,
	cfg ExtractionQueueConfig,
	logger *zap.Logger,
) *ExtractionWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionWorker{
		docRepo:   docRepo,
		storage:   storage,
		extractor: extractor,
		events:    events,
		checks:    validator.NewEngine(),
		cfg:       cfg,
		logger:    logger,
		queue:     make(chan int64, cfg.QueueSize),
	}
}

// Enqueue schedules docID without blocking.
func (w *ExtractionWorker) Enqueue(docID int64) error {
	select {
	case w.queue <- docID:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Start dispatches queued documents until ctx is canceled. It blocks until all
// in-flight extractions have finished.
func (w *ExtractionWorker) Start(ctx context.Context) {
	sem := make(chan struct{}, w.cfg.Concurrency)

	w.logger.Info("extraction worker started",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Int("queue_size", w.cfg.QueueSize),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("extraction worker shutting down, waiting for in-flight jobs")
			w.wg.Wait()
			w.logger.Info("extraction worker shutdown complete")
			return
		case docID := <-w.queue:
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				continue
			}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-sem }()

				// In-flight jobs finish even during shutdown.
				jobCtx, cancel := context.WithTimeout(context.Background(), w.cfg.JobTimeout)
				defer cancel()
				w.Process(jobCtx, docID)
			}()
		}
	}
}

// Process extracts one document. Failures are recorded on the document and
// published as an error event.
func (w *ExtractionWorker) Process(ctx context.Context, docID int64) {
	log := w.logger.With(zap.Int64("document_id", docID))

	doc, err := w.docRepo.GetByID(ctx, docID)
	if err != nil {
		log.Error("loading document failed", zap.Error(err))
		return
	}

	payload, err := w.extract(ctx, doc)
	if err != nil {
		msg := err.Error()
		if uerr := w.docRepo.UpdateStatus(ctx, docID, domain.DocumentStatusFailed, &msg); uerr != nil {
			log.Error("recording failure failed", zap.Error(uerr))
		}
		w.events.Publish(docID, domain.StreamEvent{Type: domain.EventError, Message: msg})
		log.Warn("extraction failed", zap.String("error", msg))
		return
	}

	w.events.Publish(docID, domain.StreamEvent{Type: domain.EventExtracted, Data: payload})
	w.events.Publish(docID, domain.StreamEvent{Type: domain.EventStatus, Status: string(domain.DocumentStatusExtracted)})
	log.Info("extraction finished", zap.Int("items", len(payload.Items)))
}

// extract runs the pipeline and persists the result before any terminal event
// is published, so late subscribers can replay it.
func (w *ExtractionWorker) extract(ctx context.Context, doc *domain.Document) (*domain.InvoicePayload, error) {
	if err := w.advance(ctx, doc.ID, domain.DocumentStatusProcessing); err != nil {
		return nil, err
	}

	data, err := w.storage.Download(ctx, w.cfg.Bucket, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("loading scan: %w", err)
	}

	if err := w.advance(ctx, doc.ID, domain.DocumentStatusCallingLLM); err != nil {
		return nil, err
	}

	payload, err := w.extractor.Extract(ctx, port.ExtractInput{
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		FileBytes:   data,
	})
	if err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	results := w.checks.Validate(ctx, payload)
	payload.Warnings = validator.MergeWarnings(payload.Warnings, validator.Warnings(results))

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding extraction: %w", err)
	}
	if err := w.docRepo.SetExtracted(ctx, doc.ID, raw); err != nil {
		return nil, fmt.Errorf("recording extraction: %w", err)
	}
	if err := w.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusExtracted, nil); err != nil {
		return nil, fmt.Errorf("recording extraction: %w", err)
	}
	return payload, nil
}

func (w *ExtractionWorker) advance(ctx context.Context, docID int64, status domain.DocumentStatus) error {
	if err := w.docRepo.UpdateStatus(ctx, docID, status, nil); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	w.events.Publish(docID, domain.StreamEvent{Type: domain.EventStatus, Status: string(status)})

	if w.cfg.StageDelay <= 0 {
		return nil
	}
	t := time.NewTimer(w.cfg.StageDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
