// Command seedorders loads a sales order workbook (SalesOrderHeader and
// SalesOrderDetail sheets) into PostgreSQL, or writes it out as a SQL seed file.
//
// Usage:
//
//	go run ./cmd/seedorders [-sql db/seeds/sales_orders.sql] workbook.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"scanorder/internal/config"
	"scanorder/internal/domain"
	"scanorder/internal/export"
	"scanorder/internal/logger"
	"scanorder/internal/repository/postgres"
	"scanorder/internal/service"
)

const batchSize = 500

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sqlOut := flag.String("sql", "", "write a SQL seed file instead of inserting into the database")
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: seedorders [-sql out.sql] workbook.xlsx")
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	orders, err := export.ReadWorkbook(f)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}
	log.Printf("workbook: %d orders", len(orders))

	if *sqlOut != "" {
		return writeSQL(*sqlOut, orders)
	}
	return insert(orders)
}

func insert(orders []domain.Order) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.NewDB(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	n, err := service.SeedOrders(ctx, postgres.NewOrderRepo(db), orders, zl)
	if err != nil {
		return err
	}
	log.Printf("inserted %d orders", n)
	return nil
}

// writeSQL keeps the workbook's order IDs so detail rows can reference them,
// then moves both sequences past the highest ID.
func writeSQL(outPath string, orders []domain.Order) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	var details []domain.OrderLine
	for i := range orders {
		for j := range orders[i].Details {
			l := orders[i].Details[j]
			l.OrderID = orders[i].ID
			if l.LineNumber == 0 {
				l.LineNumber = j + 1
			}
			details = append(details, l)
		}
	}

	var b strings.Builder
	b.WriteString("-- Sales order seed data generated from a workbook.\n")
	fmt.Fprintf(&b, "-- %d orders, %d detail rows, in batches of %d.\n", len(orders), len(details), batchSize)
	b.WriteString("BEGIN;\n\n")

	for i := 0; i < len(orders); i += batchSize {
		writeOrderBatch(&b, orders[i:min(i+batchSize, len(orders))])
	}
	for i := 0; i < len(details); i += batchSize {
		writeDetailBatch(&b, details[i:min(i+batchSize, len(details))])
	}

	b.WriteString("SELECT setval('sales_orders_id_seq', COALESCE((SELECT MAX(id) FROM sales_orders), 1));\n")
	b.WriteString("SELECT setval('sales_order_details_id_seq', COALESCE((SELECT MAX(id) FROM sales_order_details), 1));\n")
	b.WriteString("\nCOMMIT;\n")

	if _, err := out.WriteString(b.String()); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	log.Printf("generated %d orders and %d detail rows in %s", len(orders), len(details), outPath)
	return nil
}

func writeOrderBatch(b *strings.Builder, batch []domain.Order) {
	b.WriteString("INSERT INTO sales_orders (id, sales_order_number, purchase_order_number, order_date, due_date, ship_date, sub_total, tax_amt, freight, total_due, currency, bill_to_name, ship_to_name) VALUES\n")
	for i := range batch {
		o := &batch[i]
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(b, "  (%d, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)",
			o.ID, nullableText(o.SalesOrderNumber), nullableText(o.PurchaseOrderNumber),
			nullableTime(o.OrderDate), nullableTime(o.DueDate), nullableTime(o.ShipDate),
			numeric(o.SubTotal), numeric(o.TaxAmt), numeric(o.Freight), numeric(o.TotalDue),
			text(o.Currency), text(o.BillToName), text(o.ShipToName))
	}
	b.WriteString("\nON CONFLICT (id) DO NOTHING;\n\n")
}

func writeDetailBatch(b *strings.Builder, batch []domain.OrderLine) {
	b.WriteString("INSERT INTO sales_order_details (order_id, line_number, item_number, description, order_qty, unit_price, line_total) VALUES\n")
	for i := range batch {
		l := &batch[i]
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(b, "  (%d, %d, %s, %s, %s, %s, %s)",
			l.OrderID, l.LineNumber, text(l.ItemNumber), text(l.Description),
			numeric(l.OrderQty), numeric(l.UnitPrice), numeric(l.LineTotal))
	}
	b.WriteString(";\n\n")
}

func text(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func nullableText(s *string) string {
	if s == nil {
		return "NULL"
	}
	return text(*s)
}

func nullableTime(t *time.Time) string {
	if t == nil {
		return "NULL"
	}
	return "'" + t.Format("2006-01-02 15:04:05") + "'"
}

func numeric(d decimal.Decimal) string {
	return d.StringFixed(4)
}
