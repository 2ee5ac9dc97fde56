package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// SeedOrders inserts orders into an empty order store and reports how many
// were written. A store that already holds orders is left untouched.
func SeedOrders(ctx context.Context, repo port.OrderRepository, orders []domain.Order, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	existing, err := repo.List(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("checking existing orders: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("order store already populated, skipping seed")
		return 0, nil
	}

	// The store assigns identifiers, so sheet IDs are dropped.
	for i := range orders {
		o := orders[i]
		o.ID = 0
		o.DocumentID = 0
		o.Details = append([]domain.OrderLine(nil), orders[i].Details...)
		for j := range o.Details {
			o.Details[j].ID = 0
			o.Details[j].OrderID = 0
			if o.Details[j].LineNumber == 0 {
				o.Details[j].LineNumber = j + 1
			}
		}
		if err := repo.Create(ctx, &o); err != nil {
			return i, fmt.Errorf("seeding order %d: %w", i+1, err)
		}
	}

	logger.Info("seeded sales orders", zap.Int("count", len(orders)))
	return len(orders), nil
}
