// Package dataset pairs each parsed order row with its validation state and
// implements the operations that reorder, filter and gate a file's rows.
//
// A Dataset is a single ordered sequence of Records. Every Record carries its
// own Validation and a stable ID, so sorting and filtering move rows and
// validations together and the two can never drift out of alignment.
package dataset

import (
	"github.com/google/uuid"
	"github.com/wellness-kit/order-intake/internal/ingest"
)

// Status is the validation state of one row.
type Status string

const (
	StatusPending  Status = "pending"
	StatusChecking Status = "checking"
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusError    Status = "error"
)

// Validation is the per-row verdict. Reason is set for invalid and error.
type Validation struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Pending is the state of a row that has not been checked yet.
func Pending() Validation { return Validation{Status: StatusPending} }

// Valid is the state of a row that passed the geofence.
func Valid() Validation { return Validation{Status: StatusValid} }

// Invalid is the state of a row that failed validation.
func Invalid(reason string) Validation { return Validation{Status: StatusInvalid, Reason: reason} }

// Errored is the state of a row whose check could not be completed.
func Errored(reason string) Validation { return Validation{Status: StatusError, Reason: reason} }

// Failed reports whether the row counts against the upload gate.
func (v Validation) Failed() bool {
	return v.Status == StatusInvalid || v.Status == StatusError
}

// Resolved reports whether checking has finished for the row.
func (v Validation) Resolved() bool {
	return v.Status != StatusPending && v.Status != StatusChecking
}

// Record is one shape-valid row of the file together with its validation.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	Line       int               `json:"line"`
	Fields     map[string]string `json:"fields"`
	Validation Validation        `json:"validation"`
}

// Dataset is the parsed, classified content of one uploaded file.
type Dataset struct {
	Filename  string
	Headers   []string
	Delimiter rune
	Report    *ingest.Report
	Records   []Record
}

// New wraps a parsed table. Every record starts Pending.
func New(filename string, table *ingest.Table, report *ingest.Report) *Dataset {
	records := make([]Record, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = Record{
			ID:         uuid.New(),
			Line:       row.Line,
			Fields:     row.Fields,
			Validation: Pending(),
		}
	}
	return &Dataset{
		Filename:  filename,
		Headers:   table.Headers,
		Delimiter: table.Delimiter,
		Report:    report,
		Records:   records,
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Rows projects the row mappings in current order.
func (d *Dataset) Rows() []map[string]string {
	rows := make([]map[string]string, len(d.Records))
	for i, r := range d.Records {
		rows[i] = r.Fields
	}
	return rows
}

// Validations projects the validations in current order; index i describes Rows()[i].
func (d *Dataset) Validations() []Validation {
	vals := make([]Validation, len(d.Records))
	for i, r := range d.Records {
		vals[i] = r.Validation
	}
	return vals
}

// Counts tallies records by outcome.
type Counts struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"` // invalid + error
	Pending int `json:"pending"` // pending + checking
}

// Counts tallies the dataset's validations.
func (d *Dataset) Counts() Counts {
	c := Counts{Total: d.Len()}
	if d == nil {
		return c
	}
	for _, r := range d.Records {
		switch {
		case r.Validation.Failed():
			c.Invalid++
		case !r.Validation.Resolved():
			c.Pending++
		case r.Validation.Status == StatusValid:
			c.Valid++
		}
	}
	return c
}

// Serialize renders the dataset with its original header order and delimiter.
func (d *Dataset) Serialize() string {
	return ingest.Serialize(d.Headers, d.Rows(), d.Delimiter)
}

// clone copies the dataset header and report; records are left for the caller.
func (d *Dataset) clone(records []Record) *Dataset {
	return &Dataset{
		Filename:  d.Filename,
		Headers:   d.Headers,
		Delimiter: d.Delimiter,
		Report:    d.Report,
		Records:   records,
	}
}
