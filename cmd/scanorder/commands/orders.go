package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"scanorder/cmd/scanorder/ui"
	"scanorder/internal/domain"
	"scanorder/internal/export"
)

const requestTimeout = time.Minute

// orderReader is the part of the backend client the order commands use.
type orderReader interface {
	ListOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error)
	GetOrder(ctx context.Context, id domain.OrderID) (*domain.OrderDetail, error)
}

func newOrdersCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect committed sales orders",
	}
	cmd.AddCommand(newOrdersListCmd(root), newOrdersShowCmd(root))
	return cmd
}

func newOrdersListCmd(root *rootOptions) *cobra.Command {
	var (
		limit    int
		xlsxPath string
		csvPath  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent sales orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, zl, err := root.session()
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			orders, err := client.ListOrders(ctx, limit)
			if err != nil {
				return fmt.Errorf("list orders: %w", err)
			}
			p := ui.NewPrinter(cmd.OutOrStdout())
			p.Orders(orders)

			if xlsxPath == "" && csvPath == "" {
				return nil
			}
			full, err := fetchFullOrders(ctx, client, orders)
			if err != nil {
				return err
			}
			if xlsxPath != "" {
				if err := writeFile(xlsxPath, func(f *os.File) error { return export.WriteWorkbook(f, full) }); err != nil {
					return err
				}
				p.Info("wrote %d orders to %s", len(full), xlsxPath)
			}
			if csvPath != "" {
				if err := writeFile(csvPath, func(f *os.File) error { return writeCSV(f, full) }); err != nil {
					return err
				}
				p.Info("wrote %d orders to %s", len(full), csvPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of orders (backend default when 0)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also export the orders with their lines to this .xlsx file")
	cmd.Flags().StringVar(&csvPath, "csv", "", "also export the order headers to this .csv file")
	return cmd
}

func newOrdersShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one sales order with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, zl, err := root.session()
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			order, err := client.GetOrder(ctx, domain.OrderID(args[0]))
			if err != nil {
				return fmt.Errorf("get order %s: %w", args[0], err)
			}
			ui.NewPrinter(cmd.OutOrStdout()).Order(order)
			return nil
		},
	}
}

// fetchFullOrders loads the detail lines of every listed order.
func fetchFullOrders(ctx context.Context, client orderReader, orders []domain.OrderSummary) ([]domain.Order, error) {
	full := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		detail, err := client.GetOrder(ctx, o.SalesOrderID)
		if err != nil {
			return nil, fmt.Errorf("get order %s: %w", o.SalesOrderID, err)
		}
		full = append(full, orderFromDetail(detail))
	}
	return full, nil
}

// orderFromDetail rebuilds an order from its wire form for export.
func orderFromDetail(d *domain.OrderDetail) domain.Order {
	h := d.Header
	id, _ := strconv.ParseInt(h.SalesOrderID.String(), 10, 64)
	o := domain.Order{
		ID:                  id,
		SalesOrderNumber:    h.SalesOrderNumber,
		PurchaseOrderNumber: h.PurchaseOrderNumber,
		OrderDate:           wireTime(h.OrderDate),
		DueDate:             wireTime(h.DueDate),
		ShipDate:            wireTime(h.ShipDate),
		SubTotal:            wireDecimal(h.SubTotal),
		TaxAmt:              wireDecimal(h.TaxAmt),
		Freight:             wireDecimal(h.Freight),
		TotalDue:            wireDecimal(h.TotalDue),
		Currency:            h.Currency,
		BillToName:          h.BillToName,
		ShipToName:          h.ShipToName,
		Details:             make([]domain.OrderLine, 0, len(d.Details)),
	}
	for i, l := range d.Details {
		o.Details = append(o.Details, domain.OrderLine{
			ID:          l.SalesOrderDetailID,
			OrderID:     id,
			LineNumber:  i + 1,
			ItemNumber:  l.ItemNumber,
			Description: l.Description,
			OrderQty:    decimal.NewFromFloat(l.OrderQty),
			UnitPrice:   decimal.NewFromFloat(l.UnitPrice),
			LineTotal:   decimal.NewFromFloat(l.LineTotal),
		})
	}
	return o
}

var wireTimeLayouts = []string{"2006-01-02T15:04:05", time.RFC3339, "2006-01-02"}

func wireTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}

func wireDecimal(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

func writeCSV(f *os.File, orders []domain.Order) error {
	bw := bufio.NewWriter(f)
	if _, err := bw.Write(export.BOM); err != nil {
		return err
	}
	w := export.NewCSVWriter(bw)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteOrders(orders); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
