package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrMissingFile         = errors.New("missing file")
	ErrMissingFilename     = errors.New("missing filename")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed        = errors.New("file upload to storage failed")
	ErrInvalidPayload      = errors.New("invalid invoice payload")
	ErrQueueFull           = errors.New("extraction queue is full")
	ErrAlreadySaved        = errors.New("document already saved")

	ErrSubmitNotAllowed = errors.New("submit is only allowed from the idle stage")
	ErrSaveNotAllowed   = errors.New("save is only allowed from the reviewable stage with a draft")
	ErrEditNotAllowed   = errors.New("edits are only allowed while the draft is reviewable")
	ErrNoDraft          = errors.New("no draft installed")
	ErrItemOutOfRange   = errors.New("line item index out of range")

	ErrUnknownField      = errors.New("unknown field")
	ErrReadOnlyField     = errors.New("field is read-only")
	ErrInvalidFieldValue = errors.New("invalid field value")

	ErrControllerStopped = errors.New("workflow controller is not running")
)

// Default user-facing messages used when the backend gives no explanation.
const (
	MsgConnectFailed    = "Failed to connect to server"
	MsgProcessingFailed = "Processing failed"
	MsgSaveFailed       = "Save failed"
	MsgSaveUnreachable  = "Failed to save"
)

// ResponseError is a non-2xx reply from the backend.
type ResponseError struct {
	StatusCode int
	// Message is the body's "error" field, empty when the body carried none.
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// MalformedResponseError is a 2xx reply whose body lacks what the client needs.
type MalformedResponseError struct {
	StatusCode int
	Reason     string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Reason)
}

// SubmissionError is a transport or validation failure at upload time.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string { return e.Message }

func (e *SubmissionError) Unwrap() error { return e.Err }

// StreamError is a failure reported by the backend extraction pipeline.
// It carries only the backend's message.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }

// CommitError is a failure to persist the draft. It is recoverable: the draft stays reviewable.
type CommitError struct {
	Message string
	Err     error
}

func (e *CommitError) Error() string { return e.Message }

func (e *CommitError) Unwrap() error { return e.Err }

// RejectionError is a request the backend refuses with a message meant for
// the client. Err is the sentinel that selects the status code.
type RejectionError struct {
	Err     error
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

func (e *RejectionError) Unwrap() error { return e.Err }

// Reject wraps sentinel with a client-facing message.
func Reject(sentinel error, message string) *RejectionError {
	return &RejectionError{Err: sentinel, Message: message}
}
