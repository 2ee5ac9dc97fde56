package validator

import (
	"fmt"

	"scanorder/internal/domain"
)

func mathResult(passed bool, fieldPath, expected, actual, ruleName string) Result {
	msg := fmt.Sprintf("%s: %s calculation matches", ruleName, fieldPath)
	if !passed {
		msg = fmt.Sprintf("%s: %s does not match (expected %s, got %s)", ruleName, fieldPath, expected, actual)
	}
	return Result{
		Passed: passed, FieldPath: fieldPath,
		ExpectedValue: expected, ActualValue: actual, Message: msg,
	}
}

// MathRules returns the arithmetic checks between printed amounts.
func MathRules() []Rule {
	return []Rule{
		{
			Key: "math.line_item.line_total", Name: "Line total",
			Severity: SeverityError,
			validate: func(p *domain.InvoicePayload) []Result {
				results := make([]Result, 0, len(p.Items))
				for i := range p.Items {
					it := &p.Items[i]
					fp := fmt.Sprintf("items[%d].line_total", i)
					expected := it.Qty * it.UnitPrice
					results = append(results, mathResult(approxEqual(it.LineTotal, expected), fp, fmtf(expected), fmtf(it.LineTotal), "Line total"))
				}
				return results
			},
		},
		{
			Key: "math.subtotal", Name: "Subtotal",
			Severity: SeverityError,
			validate: func(p *domain.InvoicePayload) []Result {
				if p.Subtotal == nil || len(p.Items) == 0 {
					return nil
				}
				var sum float64
				for i := range p.Items {
					sum += p.Items[i].LineTotal
				}
				return []Result{mathResult(approxEqual(*p.Subtotal, sum), "subtotal", fmtf(sum), fmtf(*p.Subtotal), "Subtotal")}
			},
		},
		{
			Key: "math.tax_amt", Name: "Tax amount",
			Severity: SeverityWarning,
			validate: func(p *domain.InvoicePayload) []Result {
				if p.Subtotal == nil || p.TaxRate == nil || p.TaxAmt == nil {
					return nil
				}
				expected := *p.Subtotal * *p.TaxRate / 100
				return []Result{mathResult(approxEqual(*p.TaxAmt, expected), "tax_amt", fmtf(expected), fmtf(*p.TaxAmt), "Tax amount")}
			},
		},
		{
			Key: "math.total_due", Name: "Total due",
			Severity: SeverityError,
			validate: func(p *domain.InvoicePayload) []Result {
				if p.TotalDue == nil || p.Subtotal == nil {
					return nil
				}
				expected := *p.Subtotal + valueOrZero(p.TaxAmt) + valueOrZero(p.Freight)
				return []Result{mathResult(approxEqual(*p.TotalDue, expected), "total_due", fmtf(expected), fmtf(*p.TotalDue), "Total due")}
			},
		},
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
