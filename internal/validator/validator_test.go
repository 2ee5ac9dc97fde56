package validator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanorder/internal/domain"
	"scanorder/internal/validator"
)

func f64(v float64) *float64 { return &v }

func consistentPayload() *domain.InvoicePayload {
	return &domain.InvoicePayload{
		InvoiceNumber: "SO-43659",
		OrderDate:     "2024-05-31",
		DueDate:       "2024-06-12",
		ShipDate:      "2024-06-07",
		Subtotal:      f64(14.5),
		TaxRate:       f64(8),
		TaxAmt:        f64(1.16),
		Freight:       f64(3),
		TotalDue:      f64(18.66),
		Currency:      "USD",
		Items: []domain.PayloadLineItem{
			{Description: "Widget", Qty: 2, UnitPrice: 5, LineTotal: 10},
			{Description: "Gizmo", Qty: 3, UnitPrice: 1.5, LineTotal: 4.5},
		},
	}
}

func failed(results []validator.Result) map[string]validator.Result {
	out := make(map[string]validator.Result)
	for _, r := range results {
		if !r.Passed {
			out[r.FieldPath] = r
		}
	}
	return out
}

func TestEngine_ConsistentPayloadPasses(t *testing.T) {
	results := validator.NewEngine().Validate(context.Background(), consistentPayload())

	require.NotEmpty(t, results)
	assert.Empty(t, validator.Warnings(results))
}

func TestEngine_NilPayload(t *testing.T) {
	assert.Nil(t, validator.NewEngine().Validate(context.Background(), nil))
}

func TestEngine_MathRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *domain.InvoicePayload)
		field   string
		wantMsg string
	}{
		{
			name:    "line total",
			mutate:  func(p *domain.InvoicePayload) { p.Items[1].LineTotal = 5 },
			field:   "items[1].line_total",
			wantMsg: "Line total: items[1].line_total does not match (expected 4.50, got 5.00)",
		},
		{
			name:    "subtotal",
			mutate:  func(p *domain.InvoicePayload) { p.Subtotal = f64(15) },
			field:   "subtotal",
			wantMsg: "Subtotal: subtotal does not match (expected 14.50, got 15.00)",
		},
		{
			name:    "tax amount",
			mutate:  func(p *domain.InvoicePayload) { p.TaxAmt = f64(2) },
			field:   "tax_amt",
			wantMsg: "Tax amount: tax_amt does not match (expected 1.16, got 2.00)",
		},
		{
			name:    "total due",
			mutate:  func(p *domain.InvoicePayload) { p.TotalDue = f64(20) },
			field:   "total_due",
			wantMsg: "Total due: total_due does not match (expected 18.66, got 20.00)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := consistentPayload()
			tt.mutate(p)

			bad := failed(validator.NewEngine(validator.MathRules()...).Validate(context.Background(), p))

			require.Contains(t, bad, tt.field)
			assert.Equal(t, tt.wantMsg, bad[tt.field].Message)
		})
	}
}

func TestEngine_MathRules_WithinTolerance(t *testing.T) {
	p := consistentPayload()
	p.TaxAmt = f64(1.17)
	p.TotalDue = f64(18.67)

	assert.Empty(t, validator.Warnings(validator.NewEngine().Validate(context.Background(), p)))
}

func TestEngine_MathRules_SkipMissingTotals(t *testing.T) {
	p := consistentPayload()
	p.Subtotal, p.TaxAmt, p.TotalDue = nil, nil, nil

	results := validator.NewEngine(validator.MathRules()...).Validate(context.Background(), p)

	assert.Len(t, results, 2)
	assert.Empty(t, validator.Warnings(results))
}

func TestEngine_RequiredRules(t *testing.T) {
	p := &domain.InvoicePayload{}

	bad := failed(validator.NewEngine(validator.RequiredRules()...).Validate(context.Background(), p))

	assert.Equal(t, "Required: invoice_number is missing", bad["invoice_number"].Message)
	assert.Equal(t, "Required: items is missing", bad["items"].Message)
	assert.Equal(t, validator.SeverityWarning, bad["items"].Severity)
	assert.Equal(t, "required.items", bad["items"].RuleKey)
}

func TestEngine_LogicalRules(t *testing.T) {
	p := consistentPayload()
	p.ShipDate = "2024-05-01"
	p.DueDate = "soon"
	p.Currency = "usd"

	bad := failed(validator.NewEngine(validator.LogicalRules()...).Validate(context.Background(), p))

	assert.Len(t, bad, 2)
	assert.Equal(t, "Ship date: ship_date (2024-05-01) is before order_date (2024-05-31)", bad["ship_date"].Message)
	assert.Equal(t, `Currency: "usd" is not a three-letter currency code`, bad["currency"].Message)
}

func TestEngine_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, validator.NewEngine().Validate(ctx, consistentPayload()))
}

func TestMergeWarnings(t *testing.T) {
	got := validator.MergeWarnings([]string{"a", "b"}, []string{"b", "c", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)

	assert.Empty(t, validator.MergeWarnings(nil, nil))
}
