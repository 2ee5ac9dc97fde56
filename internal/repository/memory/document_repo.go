// Package memory holds process-local repositories for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// DocumentRepo is an in-memory port.DocumentRepository.
type DocumentRepo struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[int64]domain.Document
}

var _ port.DocumentRepository = (*DocumentRepo)(nil)

// NewDocumentRepo creates an empty DocumentRepo.
func NewDocumentRepo() *DocumentRepo {
	return &DocumentRepo{docs: make(map[int64]domain.Document)}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now().UTC()
	doc.ID = r.nextID
	doc.CreatedAt = now
	doc.UpdatedAt = now
	r.docs[doc.ID] = copyDocument(*doc)
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	out := copyDocument(doc)
	return &out, nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMsg *string) error {
	return r.update(id, func(d *domain.Document) {
		d.Status = status
		d.Error = nil
		if errMsg != nil {
			msg := *errMsg
			d.Error = &msg
		}
	})
}

func (r *DocumentRepo) SetExtracted(ctx context.Context, id int64, extracted json.RawMessage) error {
	return r.update(id, func(d *domain.Document) {
		d.ExtractedJSON = append(json.RawMessage(nil), extracted...)
	})
}

func (r *DocumentRepo) MarkSaved(ctx context.Context, id, orderID int64) error {
	return r.update(id, func(d *domain.Document) {
		d.Status = domain.DocumentStatusSaved
		d.Error = nil
		d.OrderID = &orderID
	})
}

func (r *DocumentRepo) update(id int64, fn func(*domain.Document)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	fn(&doc)
	doc.UpdatedAt = time.Now().UTC()
	r.docs[id] = doc
	return nil
}

func copyDocument(d domain.Document) domain.Document {
	d.ExtractedJSON = append(json.RawMessage(nil), d.ExtractedJSON...)
	if d.Error != nil {
		msg := *d.Error
		d.Error = &msg
	}
	if d.OrderID != nil {
		id := *d.OrderID
		d.OrderID = &id
	}
	return d
}
