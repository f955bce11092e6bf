package ingest

import (
	"strings"
)

// QuoteField quotes value only when it contains delim or a double quote,
// doubling any inner quotes.
func QuoteField(value string, delim rune) string {
	if !strings.ContainsRune(value, delim) && !strings.ContainsRune(value, '"') {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// Serialize writes the header line followed by one line per row, in header
// order, joined with delim and separated by "\n".
func Serialize(headers []string, rows []map[string]string, delim rune) string {
	sep := string(delim)
	lines := make([]string, 0, len(rows)+1)

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = QuoteField(h, delim)
	}
	lines = append(lines, strings.Join(cells, sep))

	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = QuoteField(row[h], delim)
		}
		lines = append(lines, strings.Join(cells, sep))
	}

	return strings.Join(lines, "\n")
}
