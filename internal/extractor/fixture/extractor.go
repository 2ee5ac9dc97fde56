// Package fixture provides a deterministic InvoiceExtractor that returns a
// canned payload instead of calling a model.
package fixture

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

//go:embed sample_invoice.json
var sampleInvoice []byte

// UnreadableMarker in a filename makes extraction fail.
const UnreadableMarker = "unreadable"

var (
	ErrUnreadable    = errors.New("unreadable scan")
	ErrEmptyDocument = errors.New("document is empty")
)

// Extractor returns the same payload for every readable scan.
type Extractor struct {
	raw []byte
}

var _ port.InvoiceExtractor = (*Extractor)(nil)

// New loads the payload from path, or uses the built-in sample when path is empty.
func New(path string) (*Extractor, error) {
	raw := sampleInvoice
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading fixture %s: %w", path, err)
		}
		raw = b
	}
	return NewFromJSON(raw)
}

// NewFromJSON uses raw as the payload. It must decode into a valid invoice.
func NewFromJSON(raw []byte) (*Extractor, error) {
	var p domain.InvoicePayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	return &Extractor{raw: bytes.Clone(raw)}, nil
}

// Extract returns a fresh copy of the fixture payload.
func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*domain.InvoicePayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToLower(input.Filename), UnreadableMarker) {
		return nil, ErrUnreadable
	}
	if len(input.FileBytes) == 0 {
		return nil, ErrEmptyDocument
	}

	var p domain.InvoicePayload
	if err := json.Unmarshal(e.raw, &p); err != nil {
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}
	if p.Items == nil {
		p.Items = []domain.PayloadLineItem{}
	}
	if p.Warnings == nil {
		p.Warnings = []string{}
	}
	return &p, nil
}
