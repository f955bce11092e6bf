// Command orderctl runs the order-file pipeline from a terminal: validate a
// CSV against the geofence, write a cleaned copy, fetch the template or
// submit a batch to order storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wellness-kit/order-intake/internal/config"
	"github.com/wellness-kit/order-intake/internal/geo"
)

// Exit codes.
const (
	exitOK         = 0
	exitGateClosed = 1
	exitUsage      = 2
	exitIO         = 3
	exitStore      = 4
)

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func exitCodeOf(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUsage
}

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	configPath string
	verbose    bool

	cfg   *config.Config
	fence *geo.Fence
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "orderctl",
		Short:         "Validate, clean and submit bulk order files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			cfg, err := config.LoadFile(a.configPath)
			if err != nil {
				return withCode(exitUsage, err)
			}
			fence, err := geo.NewFence(cfg.Geofence.Bounds)
			if err != nil {
				return withCode(exitUsage, err)
			}
			a.cfg, a.fence = cfg, fence
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("CONFIG_FILE"), "YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log pipeline steps to stderr")

	root.AddCommand(
		newValidateCmd(a),
		newCleanCmd(a),
		newTemplateCmd(),
		newSubmitCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orderctl:", err)
	}
	stop()
	os.Exit(exitCodeOf(err))
}
