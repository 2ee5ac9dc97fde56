package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/middleware"
)

// MsgNotFound is the body of every 404.
const MsgNotFound = "not found"

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondError sends an error body with the given status code.
func RespondError(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: msg})
}

// MapDomainError translates domain errors to HTTP status codes and client messages.
func MapDomainError(err error) (status int, msg string) {
	var rej *domain.RejectionError
	if errors.As(err, &rej) {
		return rejectionStatus(rej.Err), rej.Message
	}

	switch {
	case errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, MsgNotFound
	case errors.Is(err, domain.ErrMissingFile):
		return http.StatusBadRequest, domain.ErrMissingFile.Error()
	case errors.Is(err, domain.ErrMissingFilename):
		return http.StatusBadRequest, domain.ErrMissingFilename.Error()
	case errors.Is(err, domain.ErrInvalidPayload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusInternalServerError, domain.ErrUploadFailed.Error()
	default:
		return http.StatusInternalServerError, "an internal error occurred"
	}
}

func rejectionStatus(sentinel error) int {
	switch {
	case errors.Is(sentinel, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(sentinel, domain.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(sentinel, domain.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, msg := MapDomainError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		middleware.RequestLogger(c).Error("internal error", zap.Error(err))
	}
	RespondError(c, status, msg)
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
