package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentID is the opaque identifier the backend assigns to a submission.
type DocumentID string

func (id DocumentID) String() string { return string(id) }

// MarshalJSON emits numeric identifiers as JSON numbers.
func (id DocumentID) MarshalJSON() ([]byte, error) {
	return marshalOpaqueID(string(id))
}

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *DocumentID) UnmarshalJSON(b []byte) error {
	return unmarshalOpaqueID(b, (*string)(id))
}

// OrderID is the identifier of a committed sales order.
type OrderID string

func (id OrderID) String() string { return string(id) }

// MarshalJSON emits numeric identifiers as JSON numbers.
func (id OrderID) MarshalJSON() ([]byte, error) {
	return marshalOpaqueID(string(id))
}

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *OrderID) UnmarshalJSON(b []byte) error {
	return unmarshalOpaqueID(b, (*string)(id))
}

// DocumentIDFromInt formats a backend row id.
func DocumentIDFromInt(id int64) DocumentID { return DocumentID(strconv.FormatInt(id, 10)) }

// OrderIDFromInt formats a backend row id.
func OrderIDFromInt(id int64) OrderID { return OrderID(strconv.FormatInt(id, 10)) }

func marshalOpaqueID(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func unmarshalOpaqueID(b []byte, dst *string) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*dst = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, dst)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decoding identifier: %w", err)
	}
	*dst = n.String()
	return nil
}

// PayloadLineItem is one invoice row as it travels over the wire.
type PayloadLineItem struct {
	ItemNumber  string  `json:"item_number,omitempty"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// InvoicePayload is the extraction result carried by the "extracted" event and
// sent back on commit. Nullable numbers are pointers.
type InvoicePayload struct {
	InvoiceNumber       string   `json:"invoice_number,omitempty"`
	PurchaseOrderNumber string   `json:"purchase_order_number,omitempty"`
	OrderDate           string   `json:"order_date,omitempty"`
	DueDate             string   `json:"due_date,omitempty"`
	ShipDate            string   `json:"ship_date,omitempty"`
	Salesperson         string   `json:"salesperson,omitempty"`
	ShipVia             string   `json:"ship_via,omitempty"`
	Terms               string   `json:"terms,omitempty"`
	Subtotal            *float64 `json:"subtotal"`
	TaxRate             *float64 `json:"tax_rate"`
	TaxAmt              *float64 `json:"tax_amt"`
	Freight             *float64 `json:"freight"`
	TotalDue            *float64 `json:"total_due"`
	Currency            string   `json:"currency,omitempty"`
	BillToName          string   `json:"bill_to_name,omitempty"`
	ShipToName          string   `json:"ship_to_name,omitempty"`

	Items      []PayloadLineItem `json:"items"`
	Confidence *float64          `json:"confidence"`
	Warnings   []string          `json:"warnings"`
}

// Validate checks the structural rules a payload must satisfy before it is persisted.
func (p *InvoicePayload) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	for i := range p.Items {
		it := &p.Items[i]
		if !finite(it.Qty) || !finite(it.UnitPrice) || !finite(it.LineTotal) {
			return fmt.Errorf("%w: items[%d] has a non-finite number", ErrInvalidPayload, i)
		}
		if it.Qty < 0 {
			return fmt.Errorf("%w: items[%d].qty is negative", ErrInvalidPayload, i)
		}
	}
	for name, v := range map[string]*float64{
		"subtotal": p.Subtotal, "tax_rate": p.TaxRate, "tax_amt": p.TaxAmt,
		"freight": p.Freight, "total_due": p.TotalDue,
	} {
		if v != nil && !finite(*v) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidPayload, name)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// LineItem is one editable invoice row. LineTotal is derived.
type LineItem struct {
	ItemNumber  string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// DraftInvoice is the editable copy of one document's extraction result.
type DraftInvoice struct {
	InvoiceNumber       string
	PurchaseOrderNumber string
	OrderDate           string
	DueDate             string
	ShipDate            string
	Terms               string
	ShipVia             string
	Salesperson         string
	Currency            string
	BillToName          string
	ShipToName          string

	TaxRate decimal.Decimal
	// TaxRateInferred marks a rate recovered from a printed tax amount. While
	// set, the derived tax is rounded to cents.
	TaxRateInferred bool
	Freight         decimal.Decimal
	// TaxAmt is derived from TaxRate unless TaxOverridden is set.
	TaxAmt        decimal.Decimal
	TaxOverridden bool

	Items []LineItem

	Subtotal decimal.Decimal
	TotalDue decimal.Decimal

	Confidence *float64
	Warnings   []string
}

// Clone returns a deep copy of the draft.
func (d *DraftInvoice) Clone() *DraftInvoice {
	if d == nil {
		return nil
	}
	out := *d
	out.Items = append([]LineItem(nil), d.Items...)
	out.Warnings = append([]string(nil), d.Warnings...)
	if d.Confidence != nil {
		c := *d.Confidence
		out.Confidence = &c
	}
	return &out
}

// Notification is a decoded push-stream message. Exactly one of
// StageChanged, ResultReady or Failed.
type Notification interface {
	notification()
}

// StageChanged is a bare progress update.
type StageChanged struct {
	Label string
}

// ResultReady carries the full extraction. Terminal.
type ResultReady struct {
	Payload *InvoicePayload
}

// Failed is a backend-reported extraction failure. Terminal.
type Failed struct {
	Message string
}

func (StageChanged) notification() {}
func (ResultReady) notification()  {}
func (Failed) notification()       {}

// IsTerminalNotification reports whether n ends the stream for its document.
func IsTerminalNotification(n Notification) bool {
	switch n.(type) {
	case ResultReady, Failed:
		return true
	default:
		return false
	}
}

// Document is the backend's record of one uploaded scan.
type Document struct {
	ID            int64           `db:"id" json:"id"`
	Filename      string          `db:"filename" json:"filename"`
	ContentType   string          `db:"content_type" json:"content_type"`
	StorageKey    string          `db:"storage_key" json:"-"`
	Status        DocumentStatus  `db:"status" json:"status"`
	Error         *string         `db:"error" json:"error"`
	ExtractedJSON json.RawMessage `db:"extracted_json" json:"-"`
	OrderID       *int64          `db:"sales_order_id" json:"sales_order_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Extracted decodes the stored extraction, or returns nil when none is recorded.
func (d *Document) Extracted() (*InvoicePayload, error) {
	if len(d.ExtractedJSON) == 0 {
		return nil, nil
	}
	var p InvoicePayload
	if err := json.Unmarshal(d.ExtractedJSON, &p); err != nil {
		return nil, fmt.Errorf("decoding extracted json: %w", err)
	}
	return &p, nil
}

// Order is a persisted sales order header.
type Order struct {
	ID                  int64           `db:"id"`
	DocumentID          int64           `db:"document_id"`
	SalesOrderNumber    *string         `db:"sales_order_number"`
	PurchaseOrderNumber *string         `db:"purchase_order_number"`
	OrderDate           *time.Time      `db:"order_date"`
	DueDate             *time.Time      `db:"due_date"`
	ShipDate            *time.Time      `db:"ship_date"`
	SubTotal            decimal.Decimal `db:"sub_total"`
	TaxAmt              decimal.Decimal `db:"tax_amt"`
	Freight             decimal.Decimal `db:"freight"`
	TotalDue            decimal.Decimal `db:"total_due"`
	Currency            string          `db:"currency"`
	BillToName          string          `db:"bill_to_name"`
	ShipToName          string          `db:"ship_to_name"`
	CreatedAt           time.Time       `db:"created_at"`

	Details []OrderLine `db:"-"`
}

// OrderLine is one persisted order detail row.
type OrderLine struct {
	ID          int64           `db:"id"`
	OrderID     int64           `db:"order_id"`
	LineNumber  int             `db:"line_number"`
	ItemNumber  string          `db:"item_number"`
	Description string          `db:"description"`
	OrderQty    decimal.Decimal `db:"order_qty"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	LineTotal   decimal.Decimal `db:"line_total"`
}

// StreamEvent is one message published on a document's push stream. The SSE
// event name equals Type.
type StreamEvent struct {
	Type    string          `json:"type"`
	Status  string          `json:"status,omitempty"`
	Data    *InvoicePayload `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}
