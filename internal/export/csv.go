package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"scanorder/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter wraps csv.Writer for exporting order headers.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the column header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(headerColumns)
}

// WriteOrders writes one row per order header.
func (w *CSVWriter) WriteOrders(orders []domain.Order) error {
	for i := range orders {
		if err := w.csv.Write(orderToRow(&orders[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	multiUnderscore = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename replaces everything but letters, digits, hyphen and
// underscore with a single underscore and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {sanitized_base}_{YYYY-MM-DD}.{ext} for Content-Disposition.
func BuildFilename(base, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(base), now.Format("2006-01-02"), ext)
}
