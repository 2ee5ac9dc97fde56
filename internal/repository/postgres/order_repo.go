package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

type orderRepo struct {
	db *sqlx.DB
}

// NewOrderRepo creates a new PostgreSQL-backed OrderRepository.
func NewOrderRepo(db *sqlx.DB) port.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("orderRepo.Create begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	header := `INSERT INTO sales_orders (
		document_id, sales_order_number, purchase_order_number,
		order_date, due_date, ship_date,
		sub_total, tax_amt, freight, total_due,
		currency, bill_to_name, ship_to_name, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id`

	err = tx.QueryRowxContext(ctx, header,
		order.DocumentID, order.SalesOrderNumber, order.PurchaseOrderNumber,
		order.OrderDate, order.DueDate, order.ShipDate,
		order.SubTotal, order.TaxAmt, order.Freight, order.TotalDue,
		order.Currency, order.BillToName, order.ShipToName, order.CreatedAt).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("orderRepo.Create header: %w", err)
	}

	detail := `INSERT INTO sales_order_details (
		order_id, line_number, item_number, description, order_qty, unit_price, line_total
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

	for i := range order.Details {
		l := &order.Details[i]
		l.OrderID = order.ID
		err = tx.QueryRowxContext(ctx, detail,
			l.OrderID, l.LineNumber, l.ItemNumber, l.Description, l.OrderQty, l.UnitPrice, l.LineTotal).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("orderRepo.Create detail %d: %w", l.LineNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("orderRepo.Create commit: %w", err)
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	err := r.db.GetContext(ctx, &order, "SELECT * FROM sales_orders WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("orderRepo.GetByID: %w", err)
	}

	err = r.db.SelectContext(ctx, &order.Details,
		"SELECT * FROM sales_order_details WHERE order_id = $1 ORDER BY line_number, id", id)
	if err != nil {
		return nil, fmt.Errorf("orderRepo.GetByID details: %w", err)
	}
	return &order, nil
}

func (r *orderRepo) List(ctx context.Context, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.db.SelectContext(ctx, &orders,
		"SELECT * FROM sales_orders ORDER BY id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("orderRepo.List: %w", err)
	}
	return orders, nil
}
