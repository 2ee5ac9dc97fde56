// Package upload sends a selected scan to the backend and reports failures in
// user-facing terms.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// File is a single document selected for submission.
type File = port.UploadFile

// Submitter implements port.DocumentSubmitter on top of a raw uploader.
type Submitter struct {
	uploader port.DocumentUploader
	logger   *zap.Logger
}

var _ port.DocumentSubmitter = (*Submitter)(nil)

// NewSubmitter creates a Submitter.
func NewSubmitter(uploader port.DocumentUploader, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{uploader: uploader, logger: logger}
}

// Submit uploads file once. Every failure is a *domain.SubmissionError whose
// message is the backend's explanation when it gave one.
func (s *Submitter) Submit(ctx context.Context, file File) (domain.DocumentID, error) {
	id, err := s.uploader.UploadDocument(ctx, file)
	if err != nil {
		subErr := submissionError(err)
		s.logger.Warn("upload failed",
			zap.String("filename", file.Name),
			zap.String("reason", subErr.Message),
			zap.Error(err),
		)
		return "", subErr
	}

	s.logger.Debug("upload accepted", zap.String("filename", file.Name), zap.String("document_id", id.String()))
	return id, nil
}

func submissionError(err error) *domain.SubmissionError {
	var respErr *domain.ResponseError
	if errors.As(err, &respErr) {
		msg := respErr.Message
		if msg == "" {
			msg = fmt.Sprintf("Upload failed: %d", respErr.StatusCode)
		}
		return &domain.SubmissionError{Message: msg, Err: err}
	}
	var badResp *domain.MalformedResponseError
	if errors.As(err, &badResp) {
		return &domain.SubmissionError{Message: "Upload failed: " + badResp.Reason, Err: err}
	}
	return &domain.SubmissionError{Message: domain.MsgConnectFailed, Err: err}
}

// Open reads path into a File, sniffing its content type from the leading bytes.
// The caller owns the returned closer.
func Open(path string) (File, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("opening %s: %w", path, err)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		_ = f.Close()
		return File{}, nil, fmt.Errorf("detecting content type of %s: %w", path, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return File{}, nil, fmt.Errorf("rewinding %s: %w", path, err)
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: mt.String(),
		Body:        f,
	}, f.Close, nil
}
