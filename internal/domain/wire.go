package domain

import (
	"time"
)

// DocumentStatusView is the body of GET /api/documents/{id}.
type DocumentStatusView struct {
	ID           DocumentID      `json:"id"`
	Filename     string          `json:"filename"`
	Status       DocumentStatus  `json:"status"`
	Error        *string         `json:"error"`
	Extracted    *InvoicePayload `json:"extracted"`
	SalesOrderID OrderID         `json:"sales_order_id"`
}

// OrderSummary is one row of GET /api/orders.
type OrderSummary struct {
	SalesOrderID     OrderID  `json:"SalesOrderID"`
	SalesOrderNumber *string  `json:"SalesOrderNumber"`
	OrderDate        *string  `json:"OrderDate"`
	SubTotal         *float64 `json:"SubTotal"`
	TaxAmt           *float64 `json:"TaxAmt"`
	Freight          *float64 `json:"Freight"`
	TotalDue         *float64 `json:"TotalDue"`
}

// OrderHeaderView is the header of GET /api/orders/{id}.
type OrderHeaderView struct {
	SalesOrderID        OrderID  `json:"SalesOrderID"`
	SalesOrderNumber    *string  `json:"SalesOrderNumber"`
	PurchaseOrderNumber *string  `json:"PurchaseOrderNumber"`
	OrderDate           *string  `json:"OrderDate"`
	DueDate             *string  `json:"DueDate"`
	ShipDate            *string  `json:"ShipDate"`
	SubTotal            *float64 `json:"SubTotal"`
	TaxAmt              *float64 `json:"TaxAmt"`
	Freight             *float64 `json:"Freight"`
	TotalDue            *float64 `json:"TotalDue"`
	Currency            string   `json:"Currency,omitempty"`
	BillToName          string   `json:"BillToName,omitempty"`
	ShipToName          string   `json:"ShipToName,omitempty"`
}

// OrderLineView is one detail row of GET /api/orders/{id}.
type OrderLineView struct {
	SalesOrderDetailID int64   `json:"SalesOrderDetailID"`
	ItemNumber         string  `json:"ItemNumber,omitempty"`
	Description        string  `json:"Description,omitempty"`
	OrderQty           float64 `json:"OrderQty"`
	UnitPrice          float64 `json:"UnitPrice"`
	LineTotal          float64 `json:"LineTotal"`
}

// OrderDetail is the body of GET /api/orders/{id}.
type OrderDetail struct {
	Header  OrderHeaderView `json:"header"`
	Details []OrderLineView `json:"details"`
}

// Summary converts a persisted order into its list row.
func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		SalesOrderID:     OrderIDFromInt(o.ID),
		SalesOrderNumber: o.SalesOrderNumber,
		OrderDate:        isoDate(o.OrderDate),
		SubTotal:         floatPtr(o.SubTotal.InexactFloat64()),
		TaxAmt:           floatPtr(o.TaxAmt.InexactFloat64()),
		Freight:          floatPtr(o.Freight.InexactFloat64()),
		TotalDue:         floatPtr(o.TotalDue.InexactFloat64()),
	}
}

// Detail converts a persisted order and its lines into the detail body.
func (o *Order) Detail() OrderDetail {
	out := OrderDetail{
		Header: OrderHeaderView{
			SalesOrderID:        OrderIDFromInt(o.ID),
			SalesOrderNumber:    o.SalesOrderNumber,
			PurchaseOrderNumber: o.PurchaseOrderNumber,
			OrderDate:           isoDate(o.OrderDate),
			DueDate:             isoDate(o.DueDate),
			ShipDate:            isoDate(o.ShipDate),
			SubTotal:            floatPtr(o.SubTotal.InexactFloat64()),
			TaxAmt:              floatPtr(o.TaxAmt.InexactFloat64()),
			Freight:             floatPtr(o.Freight.InexactFloat64()),
			TotalDue:            floatPtr(o.TotalDue.InexactFloat64()),
			Currency:            o.Currency,
			BillToName:          o.BillToName,
			ShipToName:          o.ShipToName,
		},
		Details: make([]OrderLineView, 0, len(o.Details)),
	}
	for _, l := range o.Details {
		out.Details = append(out.Details, OrderLineView{
			SalesOrderDetailID: l.ID,
			ItemNumber:         l.ItemNumber,
			Description:        l.Description,
			OrderQty:           l.OrderQty.InexactFloat64(),
			UnitPrice:          l.UnitPrice.InexactFloat64(),
			LineTotal:          l.LineTotal.InexactFloat64(),
		})
	}
	return out
}

func isoDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02T15:04:05")
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
