package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wellness-kit/order-intake/internal/dataset"
	"github.com/wellness-kit/order-intake/internal/ingest"
)

var errGateClosed = errors.New("file is not ready to submit")

type rowProblem struct {
	Line   int    `json:"line"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type validateReport struct {
	File     string         `json:"file"`
	Counts   dataset.Counts `json:"counts"`
	Report   *ingest.Report `json:"report"`
	Problems []rowProblem   `json:"problems"`
	Open     bool           `json:"gate_open"`
	Blockers []string       `json:"blockers"`
}

func newValidateCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check an order file and list the rows that would block submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ds := s.Dataset()
			r := s.Readiness()

			rep := validateReport{
				File:     ds.Filename,
				Counts:   ds.Counts(),
				Report:   ds.Report,
				Problems: []rowProblem{},
				Open:     r.Open(),
				Blockers: r.Blockers(),
			}
			for _, rec := range ds.Records {
				if rec.Validation.Failed() {
					rep.Problems = append(rep.Problems, rowProblem{
						Line:   rec.Line,
						Status: string(rec.Validation.Status),
						Reason: rec.Validation.Reason,
					})
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return withCode(exitIO, err)
				}
			} else {
				printReport(out, rep)
			}

			if !rep.Open {
				return withCode(exitGateClosed, fmt.Errorf("%w: %s", errGateClosed, strings.Join(rep.Blockers, "; ")))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printReport(w io.Writer, rep validateReport) {
	fmt.Fprintf(w, "%s: %d rows, %d valid, %d invalid\n", rep.File, rep.Counts.Total, rep.Counts.Valid, rep.Counts.Invalid)
	if rep.Report != nil {
		if len(rep.Report.MissingColumns) > 0 {
			fmt.Fprintf(w, "missing columns: %s\n", strings.Join(rep.Report.MissingColumns, ", "))
		}
		for _, msg := range rep.Report.SchemaErrors {
			fmt.Fprintf(w, "schema: %s\n", msg)
		}
		for _, msg := range rep.Report.Warnings {
			fmt.Fprintf(w, "warning: %s\n", msg)
		}
		for _, msg := range rep.Report.RowErrors {
			fmt.Fprintf(w, "skipped: %s\n", msg)
		}
	}
	for _, p := range rep.Problems {
		fmt.Fprintf(w, "line %d: %s\n", p.Line, p.Reason)
	}
	if rep.Open {
		fmt.Fprintln(w, "ready to submit")
	}
}
