package port

import (
	"context"

	"scanorder/internal/domain"
)

// ExtractInput carries the data needed to extract an invoice from a scan.
type ExtractInput struct {
	Filename    string
	ContentType string
	FileBytes   []byte
}

// InvoiceExtractor turns a scanned document into a structured invoice.
type InvoiceExtractor interface {
	Extract(ctx context.Context, input ExtractInput) (*domain.InvoicePayload, error)
}

// EventPublisher fans push-stream events out to a document's subscribers.
type EventPublisher interface {
	Publish(docID int64, event domain.StreamEvent)
}

// ExtractionQueue schedules uploaded documents for extraction.
type ExtractionQueue interface {
	// Enqueue returns domain.ErrQueueFull instead of blocking.
	Enqueue(docID int64) error
}
