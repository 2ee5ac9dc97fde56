package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/middleware"
	"scanorder/internal/sandbox"
	"scanorder/internal/service"
)

// DefaultKeepAlive is the interval between comment pings on an idle stream.
const DefaultKeepAlive = 15 * time.Second

// DocumentHandler handles upload, status, push-stream and save endpoints.
type DocumentHandler struct {
	documentService service.DocumentService
	hub             *sandbox.Hub
	keepAlive       time.Duration
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documentService service.DocumentService, hub *sandbox.Hub, keepAlive time.Duration) *DocumentHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &DocumentHandler{documentService: documentService, hub: hub, keepAlive: keepAlive}
}

// Upload handles POST /api/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	mr, err := c.Request.MultipartReader()
	if err != nil {
		RespondError(c, http.StatusBadRequest, domain.ErrMissingFile.Error())
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			RespondError(c, http.StatusBadRequest, domain.ErrMissingFile.Error())
			return
		}
		if err != nil {
			RespondError(c, http.StatusBadRequest, "malformed multipart body")
			return
		}
		if part.FormName() != "file" {
			continue
		}
		if part.FileName() == "" {
			RespondError(c, http.StatusBadRequest, domain.ErrMissingFilename.Error())
			return
		}

		doc, err := h.documentService.Upload(c.Request.Context(), service.UploadInput{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        part,
		})
		if err != nil {
			HandleError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"document_id": doc.ID})
		return
	}
}

// Status handles GET /api/documents/:id
func (h *DocumentHandler) Status(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		RespondError(c, http.StatusNotFound, MsgNotFound)
		return
	}

	view, err := h.documentService.GetStatus(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Events handles GET /api/documents/:id/events
//
// The stream opens with status "connected". A document that already reached
// a terminal state gets that state replayed and the stream ends; otherwise
// live events are relayed until the terminal one.
func (h *DocumentHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		RespondError(c, http.StatusNotFound, MsgNotFound)
		return
	}

	// Subscribe before reading the document so no transition is missed.
	sub := h.hub.Subscribe(id)
	defer sub.Close()

	doc, err := h.documentService.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	log := middleware.RequestLogger(c).With(zap.Int64("document_id", id))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent(domain.EventStatus, gin.H{"status": domain.StatusConnected})
	c.Writer.Flush()

	if replay, err := terminalEvents(doc); err != nil {
		log.Error("replaying document state failed", zap.Error(err))
		return
	} else if len(replay) > 0 {
		for _, ev := range replay {
			c.SSEvent(ev.Type, ev)
		}
		c.Writer.Flush()
		log.Debug("replayed terminal state", zap.String("status", string(doc.Status)))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			log.Debug("subscriber disconnected")
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			c.SSEvent(ev.Type, ev)
			c.Writer.Flush()
			if isTerminal(ev) {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func isTerminal(ev domain.StreamEvent) bool {
	switch ev.Type {
	case domain.EventError:
		return true
	case domain.EventStatus:
		return ev.Status == string(domain.DocumentStatusExtracted)
	default:
		return false
	}
}

// terminalEvents rebuilds the closing events of a document that finished
// before the subscriber connected.
func terminalEvents(doc *domain.Document) ([]domain.StreamEvent, error) {
	switch doc.Status {
	case domain.DocumentStatusExtracted, domain.DocumentStatusSaved:
		payload, err := doc.Extracted()
		if err != nil {
			return nil, err
		}
		if payload == nil {
			return nil, nil
		}
		return []domain.StreamEvent{
			{Type: domain.EventExtracted, Data: payload},
			{Type: domain.EventStatus, Status: string(domain.DocumentStatusExtracted)},
		}, nil
	case domain.DocumentStatusFailed:
		msg := domain.MsgProcessingFailed
		if doc.Error != nil && *doc.Error != "" {
			msg = *doc.Error
		}
		return []domain.StreamEvent{{Type: domain.EventError, Message: msg}}, nil
	default:
		return nil, nil
	}
}

// Save handles PUT /api/documents/:id/save
func (h *DocumentHandler) Save(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		RespondError(c, http.StatusNotFound, MsgNotFound)
		return
	}

	var payload domain.InvoicePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	orderID, err := h.documentService.Save(c.Request.Context(), id, &payload)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales_order_id": orderID})
}
