package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"scanorder/internal/domain"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

func fieldMessage(passed bool, ruleName, fieldPath string) string {
	if passed {
		return fmt.Sprintf("%s: %s is present", ruleName, fieldPath)
	}
	return fmt.Sprintf("%s: %s is missing", ruleName, fieldPath)
}

// RequiredRules returns the checks for fields a sales order needs.
func RequiredRules() []Rule {
	return []Rule{
		{
			Key: "required.invoice_number", Name: "Required",
			Severity: SeverityWarning,
			validate: func(p *domain.InvoicePayload) []Result {
				ok := strings.TrimSpace(p.InvoiceNumber) != ""
				return []Result{{
					Passed: ok, FieldPath: "invoice_number",
					ExpectedValue: "non-empty value", ActualValue: p.InvoiceNumber,
					Message: fieldMessage(ok, "Required", "invoice_number"),
				}}
			},
		},
		{
			Key: "required.items", Name: "Required",
			Severity: SeverityWarning,
			validate: func(p *domain.InvoicePayload) []Result {
				ok := len(p.Items) > 0
				return []Result{{
					Passed: ok, FieldPath: "items",
					ExpectedValue: "at least one line item", ActualValue: fmt.Sprint(len(p.Items)),
					Message: fieldMessage(ok, "Required", "items"),
				}}
			},
		},
		{
			Key: "required.line_item.description", Name: "Required",
			Severity: SeverityWarning,
			validate: func(p *domain.InvoicePayload) []Result {
				results := make([]Result, 0, len(p.Items))
				for i := range p.Items {
					fp := fmt.Sprintf("items[%d].description", i)
					ok := strings.TrimSpace(p.Items[i].Description) != ""
					results = append(results, Result{
						Passed: ok, FieldPath: fp,
						ExpectedValue: "non-empty value", ActualValue: p.Items[i].Description,
						Message: fieldMessage(ok, "Required", fp),
					})
				}
				return results
			},
		},
	}
}

// LogicalRules returns date ordering and format checks.
func LogicalRules() []Rule {
	return []Rule{
		{
			Key: "logic.due_date_after_order_date", Name: "Due date",
			Severity: SeverityWarning,
			validate: func(p *domain.InvoicePayload) []Result {
				return dateOrder(p.OrderDate, p.DueDate, "due_date", "Due date")
			},
		},
		{
			Key: "logic.ship_date_after_order_date", Name: "Ship date",
			Severity: SeverityWarning,
			validate: func(p *domain.InvoicePayload) []Result {
				return dateOrder(p.OrderDate, p.ShipDate, "ship_date", "Ship date")
			},
		},
		{
			Key: "format.currency", Name: "Currency",
			Severity: SeverityWarning,
			validate: func(p *domain.InvoicePayload) []Result {
				if p.Currency == "" {
					return nil
				}
				ok := currencyCode.MatchString(p.Currency)
				msg := "Currency: currency is an ISO 4217 code"
				if !ok {
					msg = fmt.Sprintf("Currency: %q is not a three-letter currency code", p.Currency)
				}
				return []Result{{
					Passed: ok, FieldPath: "currency",
					ExpectedValue: "three upper-case letters", ActualValue: p.Currency, Message: msg,
				}}
			},
		},
	}
}

// dateOrder checks that later is not before the order date. Dates that do not
// parse are left to the reviewer.
func dateOrder(orderDate, later, fieldPath, ruleName string) []Result {
	start, ok1 := parseDate(orderDate)
	end, ok2 := parseDate(later)
	if !ok1 || !ok2 {
		return nil
	}
	passed := !end.Before(start)
	msg := fmt.Sprintf("%s: %s is on or after order_date", ruleName, fieldPath)
	if !passed {
		msg = fmt.Sprintf("%s: %s (%s) is before order_date (%s)", ruleName, fieldPath, later, orderDate)
	}
	return []Result{{
		Passed: passed, FieldPath: fieldPath,
		ExpectedValue: ">= " + orderDate, ActualValue: later, Message: msg,
	}}
}

var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339, "01/02/2006"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
