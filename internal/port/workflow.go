package port

import (
	"context"
	"io"

	"scanorder/internal/domain"
)

// UploadFile is a single document selected for submission.
type UploadFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// DocumentUploader performs the raw upload call against the backend.
type DocumentUploader interface {
	UploadDocument(ctx context.Context, file UploadFile) (domain.DocumentID, error)
}

// DocumentSubmitter submits a file and reports failures as *domain.SubmissionError.
type DocumentSubmitter interface {
	Submit(ctx context.Context, file UploadFile) (domain.DocumentID, error)
}

// RawEvent is one undecoded push-stream message.
type RawEvent struct {
	Name string
	Data []byte
}

// EventStream yields push-stream messages in the order the backend emitted them.
// Next returns io.EOF once the stream ends. Close unblocks a pending Next.
type EventStream interface {
	Next() (RawEvent, error)
	Close() error
}

// EventSource opens the push stream of a document.
type EventSource interface {
	Subscribe(ctx context.Context, id domain.DocumentID) (EventStream, error)
}

// OrderCommitter persists a reviewed draft as an order.
type OrderCommitter interface {
	CommitDraft(ctx context.Context, id domain.DocumentID, payload *domain.InvoicePayload) (domain.OrderID, error)
}
