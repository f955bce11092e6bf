package dataset

// Readiness is the input to the upload gate.
type Readiness struct {
	HasData        bool `json:"has_data"`
	SchemaComplete bool `json:"schema_complete"`
	ValidationDone bool `json:"validation_done"`
	InvalidCount   int  `json:"invalid_count"`
	Submitted      bool `json:"submitted"`
}

// Gate blockers.
const (
	BlockNoData      = "no rows to submit"
	BlockSchema      = "required columns are missing"
	BlockValidating  = "validation has not finished"
	BlockInvalidRows = "invalid rows must be removed first"
	BlockSubmitted   = "this file has already been submitted"
)

// ReadinessOf derives the gate inputs from a dataset (nil means no file).
func ReadinessOf(d *Dataset, submitted bool) Readiness {
	if d == nil {
		return Readiness{Submitted: submitted}
	}
	counts := d.Counts()
	schemaComplete := d.Report == nil || d.Report.SchemaComplete()
	return Readiness{
		HasData:        counts.Total > 0,
		SchemaComplete: schemaComplete,
		ValidationDone: counts.Pending == 0,
		InvalidCount:   counts.Invalid,
		Submitted:      submitted,
	}
}

// Open reports whether the dataset may be submitted.
func (r Readiness) Open() bool {
	return r.HasData && r.SchemaComplete && r.ValidationDone && r.InvalidCount == 0 && !r.Submitted
}

// Blockers lists why the gate is closed, empty when it is open.
func (r Readiness) Blockers() []string {
	blockers := make([]string, 0)
	if !r.HasData {
		blockers = append(blockers, BlockNoData)
	}
	if !r.SchemaComplete {
		blockers = append(blockers, BlockSchema)
	}
	if !r.ValidationDone {
		blockers = append(blockers, BlockValidating)
	}
	if r.InvalidCount > 0 {
		blockers = append(blockers, BlockInvalidRows)
	}
	if r.Submitted {
		blockers = append(blockers, BlockSubmitted)
	}
	return blockers
}
