package service

import (
	"context"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// Order list limits.
const (
	DefaultOrderLimit = 50
	MaxOrderLimit     = 500
)

// OrderService defines read access to committed orders.
type OrderService interface {
	List(ctx context.Context, limit int) ([]domain.OrderSummary, error)
	Get(ctx context.Context, id int64) (*domain.OrderDetail, error)
	// ListFull returns the newest orders with their lines, for exports.
	ListFull(ctx context.Context, limit int) ([]domain.Order, error)
}

type orderService struct {
	orderRepo port.OrderRepository
}

// NewOrderService creates a new OrderService implementation.
func NewOrderService(orderRepo port.OrderRepository) OrderService {
	return &orderService{orderRepo: orderRepo}
}

func (s *orderService) List(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	orders, err := s.orderRepo.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderSummary, 0, len(orders))
	for i := range orders {
		out = append(out, orders[i].Summary())
	}
	return out, nil
}

func (s *orderService) Get(ctx context.Context, id int64) (*domain.OrderDetail, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := o.Detail()
	return &d, nil
}

func (s *orderService) ListFull(ctx context.Context, limit int) ([]domain.Order, error) {
	orders, err := s.orderRepo.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	for i := range orders {
		full, err := s.orderRepo.GetByID(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i] = *full
	}
	return orders, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultOrderLimit
	case limit > MaxOrderLimit:
		return MaxOrderLimit
	default:
		return limit
	}
}
