package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Column names recognized in an order file.
const (
	ColumnID        = "id"
	ColumnLatitude  = "latitude"
	ColumnLongitude = "longitude"
	ColumnTimestamp = "timestamp"
	ColumnSubtotal  = "subtotal"
	ColumnAddress   = "address"
)

// RequiredColumns must all be present in the header. The order here is the
// order in which missing columns are reported.
var RequiredColumns = []string{ColumnLatitude, ColumnLongitude, ColumnSubtotal}

// OptionalColumns are understood when present but never required.
var OptionalColumns = []string{ColumnID, ColumnTimestamp, ColumnAddress}

// NormalizeHeader lower-cases and trims a single header cell.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// NormalizeHeaders returns a normalized copy of the header cells, preserving order.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = NormalizeHeader(h)
	}
	return out
}

// IsKnownColumn reports whether name is a required or optional column.
func IsKnownColumn(name string) bool {
	return slices.Contains(RequiredColumns, name) || slices.Contains(OptionalColumns, name)
}

// MissingColumns returns the required columns absent from the normalized
// header, in RequiredColumns order. An empty result means the schema is complete.
func MissingColumns(headers []string) []string {
	missing := make([]string, 0)
	for _, col := range RequiredColumns {
		if !slices.Contains(headers, col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// ValidateHeaders checks a normalized header row. Errors make the file unusable
// (missing required or duplicated columns); warnings flag columns that will be
// passed through without interpretation.
func ValidateHeaders(headers []string) (missing []string, warnings []string, errors []string) {
	missing = MissingColumns(headers)
	if len(missing) > 0 {
		errors = append(errors, fmt.Sprintf("missing required column(s): %s", strings.Join(missing, ", ")))
	}

	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if seen[h] {
			errors = append(errors, fmt.Sprintf("duplicate column '%s'", h))
			continue
		}
		seen[h] = true

		if !IsKnownColumn(h) {
			warnings = append(warnings, fmt.Sprintf("unexpected column '%s' will be passed through uninterpreted", h))
		}
	}

	return missing, warnings, errors
}
