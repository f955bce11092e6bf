package ingest

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/wellness-kit/order-intake/internal/schema"
)

// File-level messages.
const (
	MsgEmptyFile = "File is empty"
	MsgNotCSV    = "Please upload a .csv file."
	MsgNotUTF8   = "File is not valid UTF-8 text"
)

// Row is one shape-valid data line: cells keyed by normalized header.
type Row struct {
	Line   int               // 1-based position among non-blank lines; the header is line 1
	Fields map[string]string // exactly one entry per header
}

// Table is the parsed file.
type Table struct {
	Headers   []string
	Delimiter rune
	Rows      []Row
}

// Report collects what went wrong while parsing. Row errors and schema
// problems are reported separately from geo validation, which never sees
// dropped rows.
type Report struct {
	MissingColumns []string `json:"missing_columns"`
	RowErrors      []string `json:"row_errors"`
	SchemaErrors   []string `json:"schema_errors"`
	Warnings       []string `json:"warnings"`
}

// SchemaComplete reports whether rows may be parsed and validated.
func (r *Report) SchemaComplete() bool {
	return len(r.MissingColumns) == 0 && len(r.SchemaErrors) == 0
}

// FileError builds the report for a file rejected before parsing.
func FileError(msg string) *Report {
	return &Report{
		MissingColumns: []string{},
		RowErrors:      []string{msg},
		SchemaErrors:   []string{},
		Warnings:       []string{},
	}
}

// ParseBytes decodes raw upload bytes and parses them.
func ParseBytes(raw []byte) (*Table, *Report) {
	text, err := DecodeText(raw)
	if err != nil {
		return &Table{Delimiter: Comma}, FileError(MsgNotUTF8)
	}
	return Parse(text)
}

// Parse splits text into a header and shape-valid rows. A missing required
// column (or a duplicated one) stops parsing after the header. Rows whose
// cell count differs from the header are dropped and reported by line.
func Parse(text string) (*Table, *Report) {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return &Table{Delimiter: Comma}, FileError(MsgEmptyFile)
	}

	delim := DetectDelimiter(lines[0])
	headers := schema.NormalizeHeaders(SplitFields(lines[0], delim))

	table := &Table{
		Headers:   headers,
		Delimiter: delim,
		Rows:      make([]Row, 0, len(lines)-1),
	}
	report := &Report{RowErrors: []string{}}

	report.MissingColumns, report.Warnings, report.SchemaErrors = schema.ValidateHeaders(headers)
	if report.Warnings == nil {
		report.Warnings = []string{}
	}
	if report.SchemaErrors == nil {
		report.SchemaErrors = []string{}
	}
	if !report.SchemaComplete() {
		return table, report
	}

	for i := 1; i < len(lines); i++ {
		lineNum := i + 1
		cells := SplitFields(lines[i], delim)
		if len(cells) != len(headers) {
			report.RowErrors = append(report.RowErrors,
				fmt.Sprintf("Row %d: expected %d columns, got %d", lineNum, len(headers), len(cells)))
			continue
		}

		fields := make(map[string]string, len(headers))
		for idx, h := range headers {
			fields[h] = cells[idx]
		}
		table.Rows = append(table.Rows, Row{Line: lineNum, Fields: fields})
	}

	return table, report
}

// IsCSV reports whether an upload looks like a CSV file: a .csv name or a
// text/csv content type.
func IsCSV(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/csv"
}
