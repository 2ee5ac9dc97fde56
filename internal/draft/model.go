// Package draft holds the editable invoice extracted from a document and keeps
// its derived totals consistent with every edit.
package draft

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"scanorder/internal/domain"
)

// Header field keys, named after their wire representation.
const (
	FieldInvoiceNumber       = "invoice_number"
	FieldPurchaseOrderNumber = "purchase_order_number"
	FieldOrderDate           = "order_date"
	FieldDueDate             = "due_date"
	FieldShipDate            = "ship_date"
	FieldTerms               = "terms"
	FieldShipVia             = "ship_via"
	FieldSalesperson         = "salesperson"
	FieldCurrency            = "currency"
	FieldBillToName          = "bill_to_name"
	FieldShipToName          = "ship_to_name"
	FieldTaxRate             = "tax_rate"
	FieldTaxAmt              = "tax_amt"
	FieldFreight             = "freight"
	FieldSubtotal            = "subtotal"
	FieldTotalDue            = "total_due"
	FieldConfidence          = "confidence"
	FieldWarnings            = "warnings"
)

// Line item field keys.
const (
	ItemFieldItemNumber  = "item_number"
	ItemFieldDescription = "description"
	ItemFieldQty         = "qty"
	ItemFieldUnitPrice   = "unit_price"
	ItemFieldLineTotal   = "line_total"
)

var hundred = decimal.NewFromInt(100)

// currencyPlaces is the precision of a tax derived from an inferred rate.
const currencyPlaces = 2

// Model owns one DraftInvoice. It is not safe for concurrent use; the workflow
// controller serializes all access.
type Model struct {
	inv *domain.DraftInvoice
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// Empty reports whether no draft is installed.
func (m *Model) Empty() bool {
	return m.inv == nil
}

// Draft returns a copy of the current draft, or nil.
func (m *Model) Draft() *domain.DraftInvoice {
	return m.inv.Clone()
}

// Payload returns the wire form of the current draft, or nil.
func (m *Model) Payload() *domain.InvoicePayload {
	if m.inv == nil {
		return nil
	}
	return ToPayload(m.inv)
}

// Clear discards the draft.
func (m *Model) Clear() {
	m.inv = nil
}

// Install replaces the draft wholesale with a freshly extracted payload. Any
// local edits and any tax override are discarded.
func (m *Model) Install(p *domain.InvoicePayload) {
	m.inv = FromPayload(p)
	recompute(m.inv)
}

// SetHeaderField updates one header attribute and recomputes the totals.
// Setting tax_amt turns on the tax override until the next Install.
func (m *Model) SetHeaderField(field, value string) error {
	if m.inv == nil {
		return domain.ErrNoDraft
	}
	inv := m.inv

	switch field {
	case FieldInvoiceNumber:
		inv.InvoiceNumber = value
	case FieldPurchaseOrderNumber:
		inv.PurchaseOrderNumber = value
	case FieldOrderDate:
		inv.OrderDate = value
	case FieldDueDate:
		inv.DueDate = value
	case FieldShipDate:
		inv.ShipDate = value
	case FieldTerms:
		inv.Terms = value
	case FieldShipVia:
		inv.ShipVia = value
	case FieldSalesperson:
		inv.Salesperson = value
	case FieldCurrency:
		inv.Currency = value
	case FieldBillToName:
		inv.BillToName = value
	case FieldShipToName:
		inv.ShipToName = value
	case FieldTaxRate:
		d, err := parseAmount(field, value, true)
		if err != nil {
			return err
		}
		inv.TaxRate = d
		inv.TaxRateInferred = false
	case FieldFreight:
		d, err := parseAmount(field, value, true)
		if err != nil {
			return err
		}
		inv.Freight = d
	case FieldTaxAmt:
		d, err := parseAmount(field, value, false)
		if err != nil {
			return err
		}
		inv.TaxAmt = d
		inv.TaxOverridden = true
	case FieldSubtotal, FieldTotalDue, FieldConfidence, FieldWarnings:
		return fmt.Errorf("%w: %s", domain.ErrReadOnlyField, field)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
	}

	recompute(inv)
	return nil
}

// SetItem updates one attribute of the line item at index and recomputes the
// line total and the invoice totals. index must reference an existing item.
func (m *Model) SetItem(index int, field, value string) error {
	if m.inv == nil {
		return domain.ErrNoDraft
	}
	if index < 0 || index >= len(m.inv.Items) {
		panic(fmt.Sprintf("draft: item index %d out of range [0,%d)", index, len(m.inv.Items)))
	}
	item := &m.inv.Items[index]

	switch field {
	case ItemFieldItemNumber:
		item.ItemNumber = value
	case ItemFieldDescription:
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: description is required", domain.ErrInvalidFieldValue)
		}
		item.Description = value
	case ItemFieldQty, "quantity":
		d, err := parseAmount(field, value, true)
		if err != nil {
			return err
		}
		if d.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidFieldValue, field)
		}
		item.Quantity = d
	case ItemFieldUnitPrice:
		d, err := parseAmount(field, value, true)
		if err != nil {
			return err
		}
		item.UnitPrice = d
	case ItemFieldLineTotal:
		return fmt.Errorf("%w: %s", domain.ErrReadOnlyField, field)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
	}

	recompute(m.inv)
	return nil
}

// ItemCount returns the number of line items, zero when empty.
func (m *Model) ItemCount() int {
	if m.inv == nil {
		return 0
	}
	return len(m.inv.Items)
}

func parseAmount(field, value string, emptyIsZero bool) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if emptyIsZero {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %s requires a number", domain.ErrInvalidFieldValue, field)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q is not a number", domain.ErrInvalidFieldValue, field, value)
	}
	return d, nil
}

// recompute brings every derived value in line with the items, freight and tax rate.
func recompute(inv *domain.DraftInvoice) {
	subtotal := decimal.Zero
	for i := range inv.Items {
		it := &inv.Items[i]
		it.LineTotal = it.Quantity.Mul(it.UnitPrice)
		subtotal = subtotal.Add(it.LineTotal)
	}
	inv.Subtotal = subtotal
	if !inv.TaxOverridden {
		inv.TaxAmt = subtotal.Mul(inv.TaxRate).Div(hundred)
		if inv.TaxRateInferred {
			inv.TaxAmt = inv.TaxAmt.Round(currencyPlaces)
		}
	}
	inv.TotalDue = subtotal.Add(inv.TaxAmt).Add(inv.Freight)
}
