// Package ui renders workflow progress, drafts and orders for the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"scanorder/internal/domain"
	"scanorder/internal/workflow"
)

var (
	heading = color.New(color.Bold)
	stage   = color.New(color.FgCyan)
	success = color.New(color.FgGreen, color.Bold)
	failure = color.New(color.FgRed, color.Bold)
	warning = color.New(color.FgYellow)
	muted   = color.New(color.Faint)
)

// Init applies the color preference for the rest of the process.
func Init(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Printer writes human-readable output to one stream.
type Printer struct {
	out  io.Writer
	last string
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Stage prints v's stage and status label unless they were the last printed.
func (p *Printer) Stage(v workflow.View) {
	key := string(v.Stage) + "|" + v.StatusLabel
	if key == p.last {
		return
	}
	p.last = key

	line := stage.Sprintf("%-11s", v.Stage)
	if v.StatusLabel != "" {
		line += " " + muted.Sprint(v.StatusLabel)
	}
	if v.DocumentID != "" {
		line += " " + muted.Sprintf("(document %s)", v.DocumentID)
	}
	fmt.Fprintln(p.out, line)
}

// Info prints a plain message.
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Failure prints an error message.
func (p *Printer) Failure(msg string) {
	fmt.Fprintln(p.out, failure.Sprint("error: ")+msg)
}

// Saved prints the committed order ID.
func (p *Printer) Saved(id domain.OrderID) {
	fmt.Fprintln(p.out, success.Sprintf("saved as sales order %s", id))
}

// Draft prints the header, line items, totals and warnings of d.
func (p *Printer) Draft(d *domain.DraftInvoice) {
	if d == nil {
		p.Info("no draft")
		return
	}

	heading.Fprintln(p.out, "Invoice")
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	for _, kv := range [][2]string{
		{"Invoice #", d.InvoiceNumber},
		{"PO #", d.PurchaseOrderNumber},
		{"Order date", d.OrderDate},
		{"Due date", d.DueDate},
		{"Ship date", d.ShipDate},
		{"Terms", d.Terms},
		{"Ship via", d.ShipVia},
		{"Salesperson", d.Salesperson},
		{"Bill to", d.BillToName},
		{"Ship to", d.ShipToName},
		{"Currency", d.Currency},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "  %s\t%s\n", kv[0], kv[1])
		}
	}
	_ = w.Flush()

	fmt.Fprintln(p.out)
	rows := make([][]string, 0, len(d.Items))
	for i, it := range d.Items {
		rows = append(rows, []string{
			fmt.Sprint(i), it.ItemNumber, it.Description,
			it.Quantity.String(), it.UnitPrice.StringFixed(2), it.LineTotal.StringFixed(2),
		})
	}
	Table(p.out, []string{"#", "Item", "Description", "Qty", "Unit price", "Line total"}, rows)

	fmt.Fprintln(p.out)
	tax := "Tax (" + d.TaxRate.String() + "%)"
	if d.TaxOverridden {
		tax = "Tax (manual)"
	}
	w = tabwriter.NewWriter(p.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Subtotal\t%s\t\n", d.Subtotal.StringFixed(2))
	fmt.Fprintf(w, "%s\t%s\t\n", tax, d.TaxAmt.StringFixed(2))
	fmt.Fprintf(w, "Freight\t%s\t\n", d.Freight.StringFixed(2))
	fmt.Fprintf(w, "%s\t%s\t\n", heading.Sprint("Total due"), heading.Sprint(d.TotalDue.StringFixed(2)))
	_ = w.Flush()

	if d.Confidence != nil {
		fmt.Fprintln(p.out, muted.Sprintf("confidence %.0f%%", *d.Confidence*100))
	}
	for _, msg := range d.Warnings {
		fmt.Fprintln(p.out, warning.Sprint("warning: ")+msg)
	}
}

// Orders prints one row per order.
func (p *Printer) Orders(orders []domain.OrderSummary) {
	if len(orders) == 0 {
		p.Info("no orders")
		return
	}
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{
			o.SalesOrderID.String(), str(o.SalesOrderNumber), date(o.OrderDate),
			money(o.SubTotal), money(o.TaxAmt), money(o.Freight), money(o.TotalDue),
		})
	}
	Table(p.out, []string{"ID", "Number", "Order date", "Subtotal", "Tax", "Freight", "Total due"}, rows)
}

// Order prints an order header and its detail lines.
func (p *Printer) Order(o *domain.OrderDetail) {
	h := o.Header
	heading.Fprintf(p.out, "Sales order %s\n", h.SalesOrderID)
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	for _, kv := range [][2]string{
		{"Number", str(h.SalesOrderNumber)},
		{"PO #", str(h.PurchaseOrderNumber)},
		{"Order date", date(h.OrderDate)},
		{"Due date", date(h.DueDate)},
		{"Ship date", date(h.ShipDate)},
		{"Bill to", h.BillToName},
		{"Ship to", h.ShipToName},
		{"Currency", h.Currency},
		{"Subtotal", money(h.SubTotal)},
		{"Tax", money(h.TaxAmt)},
		{"Freight", money(h.Freight)},
		{"Total due", money(h.TotalDue)},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "  %s\t%s\n", kv[0], kv[1])
		}
	}
	_ = w.Flush()

	fmt.Fprintln(p.out)
	rows := make([][]string, 0, len(o.Details))
	for _, l := range o.Details {
		rows = append(rows, []string{
			fmt.Sprint(l.SalesOrderDetailID), l.ItemNumber, l.Description,
			fmt.Sprintf("%g", l.OrderQty), fmt.Sprintf("%.2f", l.UnitPrice), fmt.Sprintf("%.2f", l.LineTotal),
		})
	}
	Table(p.out, []string{"Line", "Item", "Description", "Qty", "Unit price", "Line total"}, rows)
}

// Table writes rows under headers in aligned columns.
func Table(out io.Writer, headers []string, rows [][]string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))
	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// date trims the time of day from the backend's timestamp.
func date(s *string) string {
	if s == nil {
		return ""
	}
	v, _, _ := strings.Cut(*s, "T")
	return v
}

func money(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *f)
}
