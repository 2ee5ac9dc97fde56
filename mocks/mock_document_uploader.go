package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// MockDocumentUploader is a mock implementation of port.DocumentUploader.
type MockDocumentUploader struct {
	mock.Mock
}

func (m *MockDocumentUploader) UploadDocument(ctx context.Context, file port.UploadFile) (domain.DocumentID, error) {
	args := m.Called(ctx, file)
	return args.Get(0).(domain.DocumentID), args.Error(1)
}

// MockDocumentSubmitter is a mock implementation of port.DocumentSubmitter.
type MockDocumentSubmitter struct {
	mock.Mock
}

func (m *MockDocumentSubmitter) Submit(ctx context.Context, file port.UploadFile) (domain.DocumentID, error) {
	args := m.Called(ctx, file)
	return args.Get(0).(domain.DocumentID), args.Error(1)
}
