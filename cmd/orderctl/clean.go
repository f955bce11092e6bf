package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wellness-kit/order-intake/internal/dataset"
)

func newCleanCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "clean FILE",
		Short: "Write a copy of an order file with every invalid row removed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !s.Readiness().SchemaComplete {
				return withCode(exitGateClosed, fmt.Errorf("%s: %s", args[0], dataset.BlockSchema))
			}

			before := s.Dataset().Len()
			ds, text, err := s.StripInvalid()
			if err != nil {
				return withCode(exitIO, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "removed %d of %d rows\n", before-ds.Len(), before)

			return writeOutput(output, text, func(s string) error {
				_, err := io.WriteString(cmd.OutOrStdout(), s+"\n")
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default stdout)")
	return cmd
}
