package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `INSERT INTO documents (
		filename, content_type, storage_key, status, error, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		doc.Filename, doc.ContentType, doc.StorageKey, doc.Status, doc.Error,
		doc.CreatedAt, doc.UpdatedAt).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMsg *string) error {
	return r.exec(ctx, "documentRepo.UpdateStatus",
		"UPDATE documents SET status = $1, error = $2, updated_at = $3 WHERE id = $4",
		status, errMsg, time.Now().UTC(), id)
}

func (r *documentRepo) SetExtracted(ctx context.Context, id int64, extracted json.RawMessage) error {
	return r.exec(ctx, "documentRepo.SetExtracted",
		"UPDATE documents SET extracted_json = $1, updated_at = $2 WHERE id = $3",
		string(extracted), time.Now().UTC(), id)
}

func (r *documentRepo) MarkSaved(ctx context.Context, id, orderID int64) error {
	return r.exec(ctx, "documentRepo.MarkSaved",
		"UPDATE documents SET status = $1, error = NULL, sales_order_id = $2, updated_at = $3 WHERE id = $4",
		domain.DocumentStatusSaved, orderID, time.Now().UTC(), id)
}

func (r *documentRepo) exec(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
