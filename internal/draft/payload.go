package draft

import (
	"github.com/shopspring/decimal"

	"scanorder/internal/domain"
)

// inferredRatePlaces bounds the precision of a tax rate recovered from an
// extracted tax amount.
const inferredRatePlaces = 6

// FromPayload converts a wire payload into a draft. Derived totals are not
// computed here; Install does that.
func FromPayload(p *domain.InvoicePayload) *domain.DraftInvoice {
	if p == nil {
		p = &domain.InvoicePayload{}
	}
	inv := &domain.DraftInvoice{
		InvoiceNumber:       p.InvoiceNumber,
		PurchaseOrderNumber: p.PurchaseOrderNumber,
		OrderDate:           p.OrderDate,
		DueDate:             p.DueDate,
		ShipDate:            p.ShipDate,
		Terms:               p.Terms,
		ShipVia:             p.ShipVia,
		Salesperson:         p.Salesperson,
		Currency:            p.Currency,
		BillToName:          p.BillToName,
		ShipToName:          p.ShipToName,
		TaxRate:             fromNullable(p.TaxRate),
		Freight:             fromNullable(p.Freight),
		Items:               make([]domain.LineItem, 0, len(p.Items)),
		Warnings:            append([]string{}, p.Warnings...),
	}
	if p.Confidence != nil {
		c := *p.Confidence
		inv.Confidence = &c
	}

	subtotal := decimal.Zero
	for _, it := range p.Items {
		li := domain.LineItem{
			ItemNumber:  it.ItemNumber,
			Description: it.Description,
			Quantity:    decimal.NewFromFloat(it.Qty),
			UnitPrice:   decimal.NewFromFloat(it.UnitPrice),
		}
		inv.Items = append(inv.Items, li)
		subtotal = subtotal.Add(li.Quantity.Mul(li.UnitPrice))
	}

	// Scans often print a tax amount without a rate. The recovered rate is
	// approximate; recompute rounds its tax back to the printed cents.
	if p.TaxRate == nil && p.TaxAmt != nil && !subtotal.IsZero() {
		inv.TaxRate = decimal.NewFromFloat(*p.TaxAmt).Mul(hundred).DivRound(subtotal, inferredRatePlaces)
		inv.TaxRateInferred = true
	}
	return inv
}

// ToPayload converts a draft into its wire form. Every total is populated.
func ToPayload(inv *domain.DraftInvoice) *domain.InvoicePayload {
	p := &domain.InvoicePayload{
		InvoiceNumber:       inv.InvoiceNumber,
		PurchaseOrderNumber: inv.PurchaseOrderNumber,
		OrderDate:           inv.OrderDate,
		DueDate:             inv.DueDate,
		ShipDate:            inv.ShipDate,
		Salesperson:         inv.Salesperson,
		ShipVia:             inv.ShipVia,
		Terms:               inv.Terms,
		Subtotal:            toNullable(inv.Subtotal),
		TaxRate:             toNullable(inv.TaxRate),
		TaxAmt:              toNullable(inv.TaxAmt),
		Freight:             toNullable(inv.Freight),
		TotalDue:            toNullable(inv.TotalDue),
		Currency:            inv.Currency,
		BillToName:          inv.BillToName,
		ShipToName:          inv.ShipToName,
		Items:               make([]domain.PayloadLineItem, 0, len(inv.Items)),
		Warnings:            append([]string{}, inv.Warnings...),
	}
	if inv.Confidence != nil {
		c := *inv.Confidence
		p.Confidence = &c
	}
	for _, it := range inv.Items {
		p.Items = append(p.Items, domain.PayloadLineItem{
			ItemNumber:  it.ItemNumber,
			Description: it.Description,
			Qty:         it.Quantity.InexactFloat64(),
			UnitPrice:   it.UnitPrice.InexactFloat64(),
			LineTotal:   it.LineTotal.InexactFloat64(),
		})
	}
	return p
}

func fromNullable(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

func toNullable(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}
