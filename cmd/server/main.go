package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wellness-kit/order-intake/internal/api"
	"github.com/wellness-kit/order-intake/internal/config"
	"github.com/wellness-kit/order-intake/internal/db"
	"github.com/wellness-kit/order-intake/internal/geo"
	"github.com/wellness-kit/order-intake/internal/geocode"
	"github.com/wellness-kit/order-intake/internal/orders"
	"github.com/wellness-kit/order-intake/internal/repository"
	"github.com/wellness-kit/order-intake/internal/session"
	"github.com/wellness-kit/order-intake/internal/storage"
)

const keyCleanupInterval = time.Hour

func main() {
	// Initialize structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting order-intake service")

	cfg, err := config.LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited")
}

func run(ctx context.Context, cfg *config.Config) error {
	fence, err := geo.NewFence(cfg.Geofence.Bounds)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var store storage.Store
	switch cfg.Storage.Backend {
	case config.StorageRemote:
		store = storage.NewRemote(cfg.Storage.RemoteURL, cfg.Storage.Token, cfg.Storage.Timeout)
		slog.Info("using remote order service", "url", cfg.Storage.RemoteURL)
	default:
		pool, err := connectWithRetry(ctx, cfg, 30)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		store = storage.NewPostgres(pool, fence, storage.DefaultKeyTTL)

		idem := repository.NewIdempotencyRepository(pool)
		g.Go(func() error { return cleanExpiredKeys(ctx, idem, keyCleanupInterval) })
	}

	geocoder := geocode.NewNominatim(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout)
	registry := session.NewRegistry(fence)

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Registry: registry,
		Store:    store,
		Orders:   orders.NewService(fence, geocoder, store, cfg.Geofence.TargetState),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("server listening",
			"port", cfg.Server.Port,
			"service", "order-intake",
			"storage", cfg.Storage.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return registry.Run(ctx, cfg.Session.SweepInterval, cfg.Session.IdleTTL)
	})

	// Graceful shutdown once a signal arrives or any worker fails
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func connectWithRetry(ctx context.Context, cfg *config.Config, maxRetries int) (*db.Pool, error) {
	for i := 0; i < maxRetries; i++ {
		pool, err := db.Connect(ctx, cfg.Database)
		if err == nil {
			return pool, nil
		}
		slog.Warn("database not ready, retrying...",
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, errors.New("failed to connect to database after retries")
}

// cleanExpiredKeys drops lapsed idempotency claims until ctx is done.
func cleanExpiredKeys(ctx context.Context, repo *repository.IdempotencyRepository, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Warn("idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired idempotency keys removed", "count", n)
			}
		}
	}
}
