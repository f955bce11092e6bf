package dataset

import (
	"slices"

	"github.com/wellness-kit/order-intake/internal/geo"
	"github.com/wellness-kit/order-intake/internal/ingest"
	"github.com/wellness-kit/order-intake/internal/schema"
)

// Classify runs the geofence over every record and returns a new, fully
// classified dataset. It performs no I/O and never fails; rows with
// unparseable coordinates are tagged invalid.
func Classify(d *Dataset, fence *geo.Fence) *Dataset {
	records := make([]Record, len(d.Records))
	for i, r := range d.Records {
		r.Validation = classifyRow(r.Fields, fence)
		records[i] = r
	}
	return d.clone(records)
}

func classifyRow(fields map[string]string, fence *geo.Fence) Validation {
	ok, reason := fence.Check(fields[schema.ColumnLatitude], fields[schema.ColumnLongitude])
	if !ok {
		return Invalid(reason)
	}
	return Valid()
}

// Triage returns a new dataset with failed rows (invalid or error) ahead of
// all others. The partition is stable: relative order inside each group is kept.
func Triage(d *Dataset) *Dataset {
	records := slices.Clone(d.Records)
	slices.SortStableFunc(records, func(a, b Record) int {
		return triageRank(a) - triageRank(b)
	})
	return d.clone(records)
}

func triageRank(r Record) int {
	if r.Validation.Failed() {
		return 0
	}
	return 1
}

// StripInvalid returns a new dataset holding only the valid records, in
// current order and re-tagged valid, together with its re-serialized text.
func StripInvalid(d *Dataset) (*Dataset, string) {
	kept := make([]Record, 0, len(d.Records))
	for _, r := range d.Records {
		if r.Validation.Status != StatusValid {
			continue
		}
		r.Validation = Valid()
		kept = append(kept, r)
	}
	stripped := d.clone(kept)
	return stripped, stripped.Serialize()
}

// Process builds a dataset from a parse result and, when the schema is
// complete, classifies and triages it. A file with an incomplete schema yields
// a dataset with no records.
func Process(filename string, table *ingest.Table, report *ingest.Report, fence *geo.Fence) *Dataset {
	d := New(filename, table, report)
	if report != nil && !report.SchemaComplete() {
		return d
	}
	return Triage(Classify(d, fence))
}
