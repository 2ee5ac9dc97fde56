package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// MockInvoiceExtractor is a mock implementation of port.InvoiceExtractor.
type MockInvoiceExtractor struct {
	mock.Mock
}

func (m *MockInvoiceExtractor) Extract(ctx context.Context, input port.ExtractInput) (*domain.InvoicePayload, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InvoicePayload), args.Error(1)
}

// MockEventPublisher is a mock implementation of port.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(docID int64, event domain.StreamEvent) {
	m.Called(docID, event)
}

// MockExtractionQueue is a mock implementation of port.ExtractionQueue.
type MockExtractionQueue struct {
	mock.Mock
}

func (m *MockExtractionQueue) Enqueue(docID int64) error {
	args := m.Called(docID)
	return args.Error(0)
}
