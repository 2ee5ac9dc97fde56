package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// MsgDocumentNotFound is the save error for an unknown document.
const MsgDocumentNotFound = "Document not found"

// UploadInput is the DTO for a scan upload.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// DocumentServiceConfig holds the upload limits and storage location.
type DocumentServiceConfig struct {
	Bucket      string
	MaxUploadMB int
}

// DocumentService defines the sandbox document contract.
type DocumentService interface {
	Upload(ctx context.Context, input UploadInput) (*domain.Document, error)
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	GetStatus(ctx context.Context, id int64) (*domain.DocumentStatusView, error)
	Save(ctx context.Context, id int64, payload *domain.InvoicePayload) (int64, error)
}

type documentService struct {
	docRepo   port.DocumentRepository
	orderRepo port.OrderRepository
	storage   port.ObjectStorage
	queue     port.ExtractionQueue
	cfg       DocumentServiceConfig
	logger    *zap.Logger
}

// NewDocumentService creates a new DocumentService implementation.
func NewDocumentService(
	docRepo port.DocumentRepository,
	orderRepo port.OrderRepository,
	storage port.ObjectStorage,
	queue port.ExtractionQueue,
	cfg DocumentServiceConfig,
	logger *zap.Logger,
) DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &documentService{
		docRepo:   docRepo,
		orderRepo: orderRepo,
		storage:   storage,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *documentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	if strings.TrimSpace(input.Filename) == "" {
		return nil, domain.Reject(domain.ErrMissingFilename, domain.ErrMissingFilename.Error())
	}

	maxBytes := int64(s.cfg.MaxUploadMB) * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(input.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.Reject(domain.ErrFileTooLarge, fmt.Sprintf("file too large (>%dMB)", s.cfg.MaxUploadMB))
	}

	contentType, err := acceptedContentType(input.ContentType, data)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("documents/%s/%s", uuid.New(), input.Filename)
	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: contentType,
		Size:        int64(len(data)),
	})
	if err != nil {
		s.logger.Error("storing scan failed", zap.String("filename", input.Filename), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	doc := &domain.Document{
		Filename:    input.Filename,
		ContentType: contentType,
		StorageKey:  key,
		Status:      domain.DocumentStatusUploaded,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		_ = s.storage.Delete(ctx, s.cfg.Bucket, key)
		return nil, fmt.Errorf("creating document: %w", err)
	}

	s.logger.Info("document uploaded",
		zap.Int64("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
	)

	if err := s.queue.Enqueue(doc.ID); err != nil {
		msg := err.Error()
		_ = s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, &msg)
		s.logger.Warn("extraction not scheduled", zap.Int64("document_id", doc.ID), zap.Error(err))
		if errors.Is(err, domain.ErrQueueFull) {
			return nil, domain.Reject(domain.ErrQueueFull, "Extraction queue is full, try again later")
		}
		return nil, fmt.Errorf("scheduling extraction: %w", err)
	}
	return doc, nil
}

// acceptedContentType admits PDFs (by magic bytes or declared type) and images.
func acceptedContentType(declared string, data []byte) (string, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	sniffed := mimetype.Detect(data).String()

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")), declared == domain.ContentTypePDF:
		return domain.ContentTypePDF, nil
	case domain.AllowedImageTypes[sniffed]:
		return sniffed, nil
	case strings.HasPrefix(declared, "image/"):
		return declared, nil
	}

	reported := declared
	if reported == "" {
		reported = "application/octet-stream"
	}
	return "", domain.Reject(domain.ErrUnsupportedFileType, fmt.Sprintf(
		"Unsupported file type: %s. Please upload a PDF or image file (PNG, JPEG, GIF, WEBP, TIFF, BMP).", reported))
}

func (s *documentService) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, id)
}

func (s *documentService) GetStatus(ctx context.Context, id int64) (*domain.DocumentStatusView, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	extracted, err := doc.Extracted()
	if err != nil {
		return nil, err
	}

	view := &domain.DocumentStatusView{
		ID:        domain.DocumentIDFromInt(doc.ID),
		Filename:  doc.Filename,
		Status:    doc.Status,
		Error:     doc.Error,
		Extracted: extracted,
	}
	if doc.OrderID != nil {
		view.SalesOrderID = domain.OrderIDFromInt(*doc.OrderID)
	}
	return view, nil
}

// Save records the reviewed payload on the document and turns it into an order.
func (s *documentService) Save(ctx context.Context, id int64, payload *domain.InvoicePayload) (int64, error) {
	if err := payload.Validate(); err != nil {
		return 0, domain.Reject(domain.ErrInvalidPayload, err.Error())
	}

	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return 0, domain.Reject(domain.ErrDocumentNotFound, MsgDocumentNotFound)
		}
		return 0, err
	}
	if doc.Status == domain.DocumentStatusSaved && doc.OrderID != nil {
		return 0, domain.Reject(domain.ErrAlreadySaved, fmt.Sprintf("Document already saved as order %d", *doc.OrderID))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encoding payload: %w", err)
	}
	if err := s.docRepo.SetExtracted(ctx, doc.ID, raw); err != nil {
		return 0, fmt.Errorf("recording reviewed payload: %w", err)
	}

	order := OrderFromPayload(doc.ID, payload)
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return 0, fmt.Errorf("creating order: %w", err)
	}
	if err := s.docRepo.MarkSaved(ctx, doc.ID, order.ID); err != nil {
		return 0, fmt.Errorf("marking document saved: %w", err)
	}

	s.logger.Info("document saved",
		zap.Int64("document_id", doc.ID),
		zap.Int64("order_id", order.ID),
		zap.Int("lines", len(order.Details)),
	)
	return order.ID, nil
}

// OrderFromPayload maps a reviewed invoice onto an order header and its lines.
// Missing totals are stored as zero; unparseable dates are dropped.
func OrderFromPayload(documentID int64, p *domain.InvoicePayload) *domain.Order {
	o := &domain.Order{
		DocumentID:          documentID,
		SalesOrderNumber:    optionalString(p.InvoiceNumber),
		PurchaseOrderNumber: optionalString(p.PurchaseOrderNumber),
		OrderDate:           parseDate(p.OrderDate),
		DueDate:             parseDate(p.DueDate),
		ShipDate:            parseDate(p.ShipDate),
		SubTotal:            decimalOf(p.Subtotal),
		TaxAmt:              decimalOf(p.TaxAmt),
		Freight:             decimalOf(p.Freight),
		TotalDue:            decimalOf(p.TotalDue),
		Currency:            p.Currency,
		BillToName:          p.BillToName,
		ShipToName:          p.ShipToName,
		Details:             make([]domain.OrderLine, 0, len(p.Items)),
	}
	for i, it := range p.Items {
		o.Details = append(o.Details, domain.OrderLine{
			LineNumber:  i + 1,
			ItemNumber:  it.ItemNumber,
			Description: it.Description,
			OrderQty:    decimal.NewFromFloat(it.Qty),
			UnitPrice:   decimal.NewFromFloat(it.UnitPrice),
			LineTotal:   decimal.NewFromFloat(it.LineTotal),
		})
	}
	return o
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "Z"))
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func decimalOf(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
