package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wellness-kit/order-intake/internal/config"
	"github.com/wellness-kit/order-intake/internal/db"
	"github.com/wellness-kit/order-intake/internal/session"
	"github.com/wellness-kit/order-intake/internal/storage"
)

func newSubmitCmd(a *app) *cobra.Command {
	var (
		remoteURL string
		token     string
		strip     bool
	)

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit an order file as one batch",
		Long: "Submit an order file as one batch. The file must pass validation; " +
			"use --strip-invalid to drop failing rows first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if remoteURL != "" {
				a.cfg.Storage.Backend = config.StorageRemote
				a.cfg.Storage.RemoteURL = remoteURL
			}
			if token != "" {
				a.cfg.Storage.Token = token
			}

			s, err := a.loadFile(ctx, args[0])
			if err != nil {
				return err
			}
			if strip {
				if _, _, err := s.StripInvalid(); err != nil {
					return withCode(exitIO, err)
				}
			}

			var store storage.Store
			switch a.cfg.Storage.Backend {
			case config.StorageRemote:
				if a.cfg.Storage.RemoteURL == "" {
					return withCode(exitUsage, errors.New("--remote or storage.remote_url is required"))
				}
				store = storage.NewRemote(a.cfg.Storage.RemoteURL, a.cfg.Storage.Token, a.cfg.Storage.Timeout)
			default:
				pool, err := db.Connect(ctx, a.cfg.Database)
				if err != nil {
					return withCode(exitStore, err)
				}
				defer pool.Close()
				if err := db.RunMigrations(ctx, pool); err != nil {
					return withCode(exitStore, err)
				}
				store = storage.NewPostgres(pool, a.fence, storage.DefaultKeyTTL)
			}

			res, err := s.Submit(ctx, store)
			switch {
			case errors.Is(err, session.ErrGateClosed):
				return withCode(exitGateClosed, err)
			case err != nil:
				return withCode(exitStore, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return withCode(exitIO, fmt.Errorf("write result: %w", err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteURL, "remote", "", "Order service base URL (overrides storage config)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for the order service")
	cmd.Flags().BoolVar(&strip, "strip-invalid", false, "Drop invalid rows before submitting")
	return cmd
}
