package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"scanorder/internal/domain"
)

// MockOrderCommitter is a mock implementation of port.OrderCommitter.
type MockOrderCommitter struct {
	mock.Mock
}

func (m *MockOrderCommitter) CommitDraft(ctx context.Context, id domain.DocumentID, payload *domain.InvoicePayload) (domain.OrderID, error) {
	args := m.Called(ctx, id, payload)
	return args.Get(0).(domain.OrderID), args.Error(1)
}
