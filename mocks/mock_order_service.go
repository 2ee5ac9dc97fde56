package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"scanorder/internal/domain"
)

// MockOrderService is a mock implementation of service.OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) List(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OrderSummary), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, id int64) (*domain.OrderDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderDetail), args.Error(1)
}

func (m *MockOrderService) ListFull(ctx context.Context, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}
