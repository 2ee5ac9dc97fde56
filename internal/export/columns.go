// Package export writes committed orders as CSV or as an Excel workbook, and
// reads such workbooks back for seeding.
package export

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"scanorder/internal/domain"
)

// Sheet names follow the SalesOrderHeader / SalesOrderDetail layout.
const (
	HeaderSheet = "SalesOrderHeader"
	DetailSheet = "SalesOrderDetail"
)

// headerColumns is the header row of the header sheet and of the CSV export.
var headerColumns = []string{
	"SalesOrderID",
	"SalesOrderNumber",
	"PurchaseOrderNumber",
	"OrderDate",
	"DueDate",
	"ShipDate",
	"SubTotal",
	"TaxAmt",
	"Freight",
	"TotalDue",
	"Currency",
	"BillToName",
	"ShipToName",
}

var detailColumns = []string{
	"SalesOrderDetailID",
	"SalesOrderID",
	"ItemNumber",
	"Description",
	"OrderQty",
	"UnitPrice",
	"LineTotal",
}

const dateLayout = "2006-01-02T15:04:05"

func orderToRow(o *domain.Order) []string {
	return []string{
		strconv.FormatInt(o.ID, 10),
		deref(o.SalesOrderNumber),
		deref(o.PurchaseOrderNumber),
		formatTime(o.OrderDate),
		formatTime(o.DueDate),
		formatTime(o.ShipDate),
		formatMoney(o.SubTotal),
		formatMoney(o.TaxAmt),
		formatMoney(o.Freight),
		formatMoney(o.TotalDue),
		o.Currency,
		o.BillToName,
		o.ShipToName,
	}
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
