package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/wellness-kit/order-intake/internal/ingest"
)

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print the sample order file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(output, ingest.TemplateCSV, func(s string) error {
				_, err := io.WriteString(cmd.OutOrStdout(), s)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default stdout)")
	return cmd
}
