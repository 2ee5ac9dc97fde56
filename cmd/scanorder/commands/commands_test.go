package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scanorder/internal/api"
	"scanorder/internal/domain"
	"scanorder/internal/export"
	"scanorder/internal/sandbox/sandboxtest"
)

const pdfScan = "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"

func writeScan(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(pdfScan), 0o600))
	return path
}

func sandboxDeps(t *testing.T) (*sandboxtest.Server, *api.Client, reviewDeps) {
	t.Helper()
	srv := sandboxtest.New(t)
	client := api.NewClientWithHTTP(srv.URL, srv.Client())
	return srv, client, reviewDeps{uploader: client, committer: client, source: client, logger: zap.NewNop()}
}

func TestRunReview_EditAndSave(t *testing.T) {
	srv, _, deps := sandboxDeps(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := runReview(ctx, &out, deps, writeScan(t, "invoice.pdf"), &reviewOptions{
		sets:  []string{"invoice_number=SO-1001", "bill_to_name=Adventure Works"},
		items: []string{"0.qty=4"},
		save:  true,
	})
	require.NoError(t, err, out.String())

	text := out.String()
	assert.Contains(t, text, "uploading invoice.pdf (application/pdf)")
	assert.Contains(t, text, "reviewable")
	assert.Contains(t, text, "SO-1001")
	assert.Contains(t, text, "saved as sales order 1")

	order, err := srv.Orders.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, order.SalesOrderNumber)
	assert.Equal(t, "SO-1001", *order.SalesOrderNumber)
	assert.Equal(t, "Adventure Works", order.BillToName)
	require.Len(t, order.Details, 2)
	assert.True(t, order.Details[0].OrderQty.Equal(decimal.NewFromInt(4)))
	assert.True(t, order.Details[0].LineTotal.Equal(decimal.NewFromInt(20)), order.Details[0].LineTotal.String())

	doc, err := srv.Documents.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusSaved, doc.Status)
}

func TestRunReview_WithoutSaveLeavesNoOrder(t *testing.T) {
	srv, _, deps := sandboxDeps(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := runReview(ctx, &out, deps, writeScan(t, "invoice.pdf"), &reviewOptions{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "--save")

	list, err := srv.Orders.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRunReview_ExtractionFailure(t *testing.T) {
	_, _, deps := sandboxDeps(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := runReview(ctx, &out, deps, writeScan(t, "unreadable-page.pdf"), &reviewOptions{save: true})

	require.Error(t, err)
	assert.Equal(t, "unreadable scan", err.Error())
	assert.Contains(t, out.String(), "error: unreadable scan")
}

func TestRunReview_RejectedEdit(t *testing.T) {
	_, _, deps := sandboxDeps(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := runReview(ctx, &out, deps, writeScan(t, "invoice.pdf"), &reviewOptions{
		items: []string{"9.qty=1"},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrItemOutOfRange)
}

func TestParseHeaderEdits(t *testing.T) {
	edits, err := parseHeaderEdits([]string{"tax_rate=8.25", " terms =Net 30", "ship_via="})
	require.NoError(t, err)
	assert.Equal(t, []headerEdit{
		{field: "tax_rate", value: "8.25"},
		{field: "terms", value: "Net 30"},
		{field: "ship_via", value: ""},
	}, edits)

	for _, bad := range []string{"tax_rate", "=5"} {
		_, err := parseHeaderEdits([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseItemEdits(t *testing.T) {
	edits, err := parseItemEdits([]string{"0.qty=3", "12.description=Cable, 2m"})
	require.NoError(t, err)
	assert.Equal(t, []itemEdit{
		{index: 0, field: "qty", value: "3"},
		{index: 12, field: "description", value: "Cable, 2m"},
	}, edits)

	for _, bad := range []string{"0.qty", "qty=3", "x.qty=3", "-1.qty=3", "0.=3"} {
		_, err := parseItemEdits([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestOrdersExport_FromSandbox(t *testing.T) {
	srv, client, deps := sandboxDeps(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runReview(ctx, &out, deps, writeScan(t, "invoice.pdf"), &reviewOptions{save: true}))

	orders, err := client.ListOrders(ctx, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	full, err := fetchFullOrders(ctx, client, orders)
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, int64(1), full[0].ID)
	require.Len(t, full[0].Details, 2)

	path := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, writeFile(path, func(f *os.File) error { return export.WriteWorkbook(f, full) }))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	back, err := export.ReadWorkbook(f)
	require.NoError(t, err)
	require.Len(t, back, 1)

	stored, err := srv.Orders.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, back[0].TotalDue.Equal(stored.TotalDue), back[0].TotalDue.String())
	assert.Equal(t, *stored.SalesOrderNumber, *back[0].SalesOrderNumber)

	csvPath := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, writeFile(csvPath, func(f *os.File) error { return writeCSV(f, full) }))
	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), string(export.BOM)+"SalesOrderID,"))
}

func TestOrderFromDetail(t *testing.T) {
	number := "SO-7"
	date := "2024-05-31T00:00:00"
	total := 18.66
	d := &domain.OrderDetail{
		Header: domain.OrderHeaderView{SalesOrderID: "7", SalesOrderNumber: &number, OrderDate: &date, TotalDue: &total},
		Details: []domain.OrderLineView{
			{SalesOrderDetailID: 70, Description: "Widget", OrderQty: 2, UnitPrice: 5, LineTotal: 10},
		},
	}

	o := orderFromDetail(d)

	assert.Equal(t, int64(7), o.ID)
	require.NotNil(t, o.OrderDate)
	assert.Equal(t, "2024-05-31", o.OrderDate.Format("2006-01-02"))
	assert.Nil(t, o.DueDate)
	assert.True(t, o.TotalDue.Equal(decimal.RequireFromString("18.66")))
	assert.True(t, o.SubTotal.IsZero())
	require.Len(t, o.Details, 1)
	assert.Equal(t, 1, o.Details[0].LineNumber)
	assert.Equal(t, int64(7), o.Details[0].OrderID)
}
