package export_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"scanorder/internal/domain"
	"scanorder/internal/export"
)

func sampleOrders() []domain.Order {
	number := "SO-43659"
	po := "PO522145787"
	date := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	return []domain.Order{
		{
			ID:                  75124,
			SalesOrderNumber:    &number,
			PurchaseOrderNumber: &po,
			OrderDate:           &date,
			SubTotal:            decimal.RequireFromString("14.50"),
			TaxAmt:              decimal.RequireFromString("1.16"),
			Freight:             decimal.RequireFromString("3"),
			TotalDue:            decimal.RequireFromString("18.66"),
			Currency:            "USD",
			BillToName:          "Better Bike Shop",
			Details: []domain.OrderLine{
				{ID: 1, LineNumber: 1, ItemNumber: "BK-1", Description: "Widget", OrderQty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(5), LineTotal: decimal.NewFromInt(10)},
				{ID: 2, LineNumber: 2, Description: "Gizmo", OrderQty: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("1.5"), LineTotal: decimal.RequireFromString("4.5")},
			},
		},
		{ID: 75125, TotalDue: decimal.NewFromInt(1)},
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := export.NewCSVWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteOrders(sampleOrders()))
	w.Flush()
	require.NoError(t, w.Error())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "SalesOrderID", rows[0][0])
	assert.Equal(t, []string{"75124", "SO-43659", "PO522145787", "2024-05-31T00:00:00", "", "", "14.50", "1.16", "3.00", "18.66", "USD", "Better Bike Shop", ""}, rows[1])
	assert.Equal(t, "", rows[2][1])
	assert.Equal(t, "1.00", rows[2][9])
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "sales_orders_2026-10-16.xlsx", export.BuildFilename("sales orders!", "xlsx", now))
	assert.Equal(t, "a_b", export.SanitizeFilename("__a / b__"))
}

func TestWorkbook_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteWorkbook(&buf, sampleOrders()))

	got, err := export.ReadWorkbook(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, 2)

	o := got[0]
	assert.Equal(t, int64(75124), o.ID)
	require.NotNil(t, o.SalesOrderNumber)
	assert.Equal(t, "SO-43659", *o.SalesOrderNumber)
	require.NotNil(t, o.OrderDate)
	assert.Equal(t, "2024-05-31", o.OrderDate.Format("2006-01-02"))
	assert.Nil(t, o.DueDate)
	assert.True(t, decimal.RequireFromString("18.66").Equal(o.TotalDue))
	require.Len(t, o.Details, 2)
	assert.Equal(t, "Gizmo", o.Details[1].Description)
	assert.True(t, decimal.RequireFromString("4.5").Equal(o.Details[1].LineTotal))
	assert.Equal(t, 2, o.Details[1].LineNumber)

	assert.Nil(t, got[1].SalesOrderNumber)
	assert.Empty(t, got[1].Details)
}

func TestReadWorkbook_ForeignLayout(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", export.HeaderSheet))
	_, err := f.NewSheet(export.DetailSheet)
	require.NoError(t, err)

	require.NoError(t, f.SetSheetRow(export.HeaderSheet, "A1", &[]interface{}{"RevisionNumber", "SalesOrderID", "OrderDate", "SalesOrderNumber", "TotalDue", "AccountNumber"}))
	require.NoError(t, f.SetSheetRow(export.HeaderSheet, "A2", &[]interface{}{8, 43659, time.Date(2011, 5, 31, 0, 0, 0, 0, time.UTC), "SO43659", 23153.2339, "10-4020-000676"}))
	require.NoError(t, f.SetSheetRow(export.DetailSheet, "A1", &[]interface{}{"SalesOrderID", "SalesOrderDetailID", "OrderQty", "UnitPrice", "LineTotal"}))
	require.NoError(t, f.SetSheetRow(export.DetailSheet, "A2", &[]interface{}{43659, 1, 1, 2024.994, 2024.994}))

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := export.ReadWorkbook(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(43659), got[0].ID)
	require.NotNil(t, got[0].OrderDate)
	assert.Equal(t, "2011-05-31", got[0].OrderDate.Format("2006-01-02"))
	require.Len(t, got[0].Details, 1)
	assert.Equal(t, int64(1), got[0].Details[0].ID)
}

func TestReadWorkbook_Errors(t *testing.T) {
	_, err := export.ReadWorkbook(bytes.NewReader([]byte("not a zip")))
	assert.Error(t, err)

	f := excelize.NewFile()
	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)
	_, err = export.ReadWorkbook(&buf)
	assert.ErrorContains(t, err, "no SalesOrderHeader sheet")

	f = excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", export.HeaderSheet))
	_, err = f.NewSheet(export.DetailSheet)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(export.HeaderSheet, "A1", &[]interface{}{"SalesOrderID"}))
	require.NoError(t, f.SetSheetRow(export.HeaderSheet, "A2", &[]interface{}{1}))
	require.NoError(t, f.SetSheetRow(export.DetailSheet, "A1", &[]interface{}{"SalesOrderID"}))
	require.NoError(t, f.SetSheetRow(export.DetailSheet, "A2", &[]interface{}{2}))
	buf.Reset()
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)
	_, err = export.ReadWorkbook(&buf)
	assert.ErrorContains(t, err, "unknown SalesOrderID 2")
}
