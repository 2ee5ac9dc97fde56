package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"scanorder/internal/domain"
	"scanorder/internal/service"
)

// MockDocumentService is a mock implementation of service.DocumentService.
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetStatus(ctx context.Context, id int64) (*domain.DocumentStatusView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentStatusView), args.Error(1)
}

func (m *MockDocumentService) Save(ctx context.Context, id int64, payload *domain.InvoicePayload) (int64, error) {
	args := m.Called(ctx, id, payload)
	return args.Get(0).(int64), args.Error(1)
}
