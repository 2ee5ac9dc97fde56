// Package validator runs consistency checks over an extracted invoice. Failed
// checks become review warnings; they never block a draft.
package validator

import (
	"context"
	"fmt"
	"math"

	"scanorder/internal/domain"
)

// mathTolerance is the largest difference, in currency units, that still
// counts as a match. Printed invoices round each amount to cents.
const mathTolerance = 0.01

// Severity ranks a failed check.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Result is the outcome of one check against one field.
type Result struct {
	RuleKey       string
	Passed        bool
	Severity      Severity
	FieldPath     string
	ExpectedValue string
	ActualValue   string
	Message       string
}

// Rule is a single named check.
type Rule struct {
	Key      string
	Name     string
	Severity Severity
	validate func(*domain.InvoicePayload) []Result
}

// Engine runs a fixed set of rules.
type Engine struct {
	rules []Rule
}

// NewEngine creates an Engine with rules, or with every built-in rule when
// none are given.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = BuiltinRules()
	}
	return &Engine{rules: rules}
}

// BuiltinRules returns the arithmetic, required-field and logical checks.
func BuiltinRules() []Rule {
	var rules []Rule
	rules = append(rules, MathRules()...)
	rules = append(rules, RequiredRules()...)
	rules = append(rules, LogicalRules()...)
	return rules
}

// Validate runs every rule over p. A nil payload yields no results.
func (e *Engine) Validate(ctx context.Context, p *domain.InvoicePayload) []Result {
	if p == nil {
		return nil
	}
	var out []Result
	for _, r := range e.rules {
		if ctx.Err() != nil {
			break
		}
		for _, res := range r.validate(p) {
			res.RuleKey = r.Key
			res.Severity = r.Severity
			out = append(out, res)
		}
	}
	return out
}

// Warnings returns the messages of the failed results, in rule order.
func Warnings(results []Result) []string {
	var out []string
	for _, r := range results {
		if !r.Passed {
			out = append(out, r.Message)
		}
	}
	return out
}

// MergeWarnings appends the messages in extra that existing does not already hold.
func MergeWarnings(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, w := range existing {
		seen[w] = true
		out = append(out, w)
	}
	for _, w := range extra {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= mathTolerance+1e-9
}

func fmtf(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
