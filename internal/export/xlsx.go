package export

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"scanorder/internal/domain"
)

// WriteWorkbook writes orders and their lines to w as an .xlsx workbook with
// one header sheet and one detail sheet.
func WriteWorkbook(w io.Writer, orders []domain.Order) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), HeaderSheet); err != nil {
		return fmt.Errorf("naming header sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		return fmt.Errorf("creating detail sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(HeaderSheet)
	if err != nil {
		return fmt.Errorf("opening header sheet: %w", err)
	}
	if err := sw.SetRow("A1", stringCells(headerColumns)); err != nil {
		return fmt.Errorf("writing header row: %w", err)
	}
	for i := range orders {
		o := &orders[i]
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			o.ID,
			deref(o.SalesOrderNumber),
			deref(o.PurchaseOrderNumber),
			formatTime(o.OrderDate),
			formatTime(o.DueDate),
			formatTime(o.ShipDate),
			o.SubTotal.InexactFloat64(),
			o.TaxAmt.InexactFloat64(),
			o.Freight.InexactFloat64(),
			o.TotalDue.InexactFloat64(),
			o.Currency,
			o.BillToName,
			o.ShipToName,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("writing order %d: %w", o.ID, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing header sheet: %w", err)
	}

	dw, err := f.NewStreamWriter(DetailSheet)
	if err != nil {
		return fmt.Errorf("opening detail sheet: %w", err)
	}
	if err := dw.SetRow("A1", stringCells(detailColumns)); err != nil {
		return fmt.Errorf("writing detail header row: %w", err)
	}
	rowIdx := 2
	for i := range orders {
		for _, l := range orders[i].Details {
			cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
			row := []interface{}{
				l.ID,
				orders[i].ID,
				l.ItemNumber,
				l.Description,
				l.OrderQty.InexactFloat64(),
				l.UnitPrice.InexactFloat64(),
				l.LineTotal.InexactFloat64(),
			}
			if err := dw.SetRow(cell, row); err != nil {
				return fmt.Errorf("writing line %d: %w", l.ID, err)
			}
			rowIdx++
		}
	}
	if err := dw.Flush(); err != nil {
		return fmt.Errorf("flushing detail sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func stringCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ReadWorkbook reads orders from a workbook laid out like WriteWorkbook's
// output. Columns are located by header name, so extra columns are ignored.
// Orders keep their sheet IDs; lines are attached to their order.
func ReadWorkbook(r io.Reader) ([]domain.Order, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	headers, err := sheetRecords(f, HeaderSheet)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]int, len(headers))
	orders := make([]domain.Order, 0, len(headers))
	for n, rec := range headers {
		id, err := rec.intValue("SalesOrderID")
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", HeaderSheet, n+2, err)
		}
		o := domain.Order{
			ID:                  id,
			SalesOrderNumber:    rec.optional("SalesOrderNumber"),
			PurchaseOrderNumber: rec.optional("PurchaseOrderNumber"),
			OrderDate:           rec.timeValue("OrderDate"),
			DueDate:             rec.timeValue("DueDate"),
			ShipDate:            rec.timeValue("ShipDate"),
			SubTotal:            rec.decimalValue("SubTotal"),
			TaxAmt:              rec.decimalValue("TaxAmt"),
			Freight:             rec.decimalValue("Freight"),
			TotalDue:            rec.decimalValue("TotalDue"),
			Currency:            rec.get("Currency"),
			BillToName:          rec.get("BillToName"),
			ShipToName:          rec.get("ShipToName"),
		}
		byID[id] = len(orders)
		orders = append(orders, o)
	}

	details, err := sheetRecords(f, DetailSheet)
	if err != nil {
		return nil, err
	}
	for n, rec := range details {
		orderID, err := rec.intValue("SalesOrderID")
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", DetailSheet, n+2, err)
		}
		idx, ok := byID[orderID]
		if !ok {
			return nil, fmt.Errorf("%s row %d: unknown SalesOrderID %d", DetailSheet, n+2, orderID)
		}
		lineID, _ := rec.intValue("SalesOrderDetailID")
		o := &orders[idx]
		o.Details = append(o.Details, domain.OrderLine{
			ID:          lineID,
			OrderID:     orderID,
			LineNumber:  len(o.Details) + 1,
			ItemNumber:  rec.get("ItemNumber"),
			Description: rec.get("Description"),
			OrderQty:    rec.decimalValue("OrderQty"),
			UnitPrice:   rec.decimalValue("UnitPrice"),
			LineTotal:   rec.decimalValue("LineTotal"),
		})
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

type record map[string]string

func sheetRecords(f *excelize.File, sheet string) ([]record, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook has no %s sheet", sheet)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	names := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		names[i] = strings.TrimSpace(h)
	}
	out := make([]record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(record, len(names))
		for i, v := range row {
			if i < len(names) && names[i] != "" {
				rec[names[i]] = strings.TrimSpace(v)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (r record) get(col string) string { return r[col] }

func (r record) optional(col string) *string {
	v := r[col]
	if v == "" || strings.EqualFold(v, "NULL") {
		return nil
	}
	return &v
}

var errMissingValue = errors.New("missing value")

func (r record) intValue(col string) (int64, error) {
	v := r[col]
	if v == "" {
		return 0, fmt.Errorf("%s: %w", col, errMissingValue)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return int64(f), nil
}

func (r record) decimalValue(col string) decimal.Decimal {
	d, err := decimal.NewFromString(r[col])
	if err != nil {
		return decimal.Zero
	}
	return d
}

var sheetDateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// timeValue accepts Excel serial dates and the usual ISO layouts. Unparseable
// values become nil.
func (r record) timeValue(col string) *time.Time {
	v := r[col]
	if v == "" {
		return nil
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil
		}
		return &t
	}
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
