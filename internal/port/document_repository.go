package port

import (
	"context"
	"encoding/json"

	"scanorder/internal/domain"
)

// DocumentRepository defines the contract for uploaded document persistence.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMsg *string) error
	SetExtracted(ctx context.Context, id int64, extracted json.RawMessage) error
	MarkSaved(ctx context.Context, id, orderID int64) error
}

// OrderRepository defines the contract for sales order persistence.
type OrderRepository interface {
	// Create inserts the header and its details, filling in the generated IDs.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// List returns the newest orders first, without details.
	List(ctx context.Context, limit int) ([]domain.Order, error)
}
