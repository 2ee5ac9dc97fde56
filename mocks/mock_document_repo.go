package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"scanorder/internal/domain"
)

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMsg *string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockDocumentRepo) SetExtracted(ctx context.Context, id int64, extracted json.RawMessage) error {
	args := m.Called(ctx, id, extracted)
	return args.Error(0)
}

func (m *MockDocumentRepo) MarkSaved(ctx context.Context, id, orderID int64) error {
	args := m.Called(ctx, id, orderID)
	return args.Error(0)
}

// MockOrderRepo is a mock implementation of port.OrderRepository.
type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepo) List(ctx context.Context, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}
