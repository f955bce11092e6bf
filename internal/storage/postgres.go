package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellness-kit/order-intake/internal/db"
	"github.com/wellness-kit/order-intake/internal/geo"
	"github.com/wellness-kit/order-intake/internal/ingest"
	"github.com/wellness-kit/order-intake/internal/models"
	"github.com/wellness-kit/order-intake/internal/repository"
	"github.com/wellness-kit/order-intake/internal/schema"
)

// DefaultKeyTTL is how long a batch fingerprint blocks a re-import.
const DefaultKeyTTL = 24 * time.Hour

const (
	pgUniqueViolation = "23505"
	pgNumericOverflow = "22003"
)

// MaxSubtotal is the first value that no longer fits the subtotal column, NUMERIC(12,2).
const MaxSubtotal = 1e10

// Postgres stores orders in the service's own database.
type Postgres struct {
	pool   *pgxpool.Pool
	fence  *geo.Fence
	keyTTL time.Duration
	now    func() time.Time
}

// NewPostgres creates a Postgres-backed store. Payload rows are re-checked
// against fence before anything is written.
func NewPostgres(pool *pgxpool.Pool, fence *geo.Fence, keyTTL time.Duration) *Postgres {
	if keyTTL <= 0 {
		keyTTL = DefaultKeyTTL
	}
	return &Postgres{pool: pool, fence: fence, keyTTL: keyTTL, now: time.Now}
}

// ImportBatch parses the payload, builds every order and writes them in one
// transaction together with the batch record and its idempotency key.
func (s *Postgres) ImportBatch(ctx context.Context, req ImportRequest) (*models.ImportResult, error) {
	logger := slog.Default().With("service", "order-store", "filename", req.Filename)

	table, report := ingest.ParseBytes(req.Payload)
	if len(report.RowErrors) > 0 {
		return nil, invalidPayload("%s", report.RowErrors[0])
	}
	if !report.SchemaComplete() {
		return nil, invalidPayload("%s", report.SchemaErrors[0])
	}

	batchID := uuid.New()
	now := s.now().UTC()
	orders, err := BuildOrders(table, s.fence, batchID, now)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, invalidPayload("no orders in file")
	}

	fingerprint := Fingerprint(req.Payload)
	start := time.Now()

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		claim, err := repository.NewIdempotencyRepository(tx).
			Claim(ctx, fingerprint, repository.ResourceImportBatch, batchID, s.keyTTL)
		if err != nil {
			return fmt.Errorf("claim fingerprint: %w", err)
		}
		if claim.AlreadyExists {
			return fmt.Errorf("%w (batch %s)", ErrDuplicateBatch, claim.ResourceID)
		}

		batches := repository.NewImportBatchRepository(tx)
		if err := batches.Create(ctx, &models.ImportBatch{
			ID:          batchID,
			Filename:    req.Filename,
			Fingerprint: fingerprint,
			Status:      repository.BatchStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}

		if err := repository.NewOrderRepository(tx).BulkInsert(ctx, orders); err != nil {
			return storeError("insert orders", err)
		}

		return batches.MarkCompleted(ctx, batchID, len(orders))
	})
	if err != nil {
		logger.Warn("batch import failed", "step", "store", "error", err)
		return nil, err
	}

	logger.Info("batch imported",
		"step", "store",
		"batch_id", batchID,
		"orders", len(orders),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &models.ImportResult{BatchID: batchID.String(), Imported: len(orders)}, nil
}

// CreateOrder stores a single order outside any batch.
func (s *Postgres) CreateOrder(ctx context.Context, order models.Order) (*models.Order, error) {
	if !s.fence.Contains(order.Latitude, order.Longitude) {
		return nil, invalidPayload("order %s is outside the accepted area", order.ID)
	}
	if order.Subtotal >= MaxSubtotal {
		return nil, invalidPayload("subtotal is too large")
	}
	if order.ID == "" {
		order.ID = models.NewOrderID()
	}
	order.RowID = uuid.New()
	order.CreatedAt = s.now().UTC()
	order.Geohash = geo.Geohash(order.Latitude, order.Longitude)

	if err := repository.NewOrderRepository(s.pool).Create(ctx, &order); err != nil {
		return nil, storeError("create order", err)
	}
	return &order, nil
}

// BuildOrders converts parsed rows into orders for one batch. Any row that
// cannot be stored fails the whole batch.
func BuildOrders(table *ingest.Table, fence *geo.Fence, batchID uuid.UUID, now time.Time) ([]models.Order, error) {
	orders := make([]models.Order, 0, len(table.Rows))
	seen := make(map[string]int, len(table.Rows))

	for _, row := range table.Rows {
		f := row.Fields

		lat, lon, err := geo.ParseCoordinates(f[schema.ColumnLatitude], f[schema.ColumnLongitude])
		if err != nil {
			return nil, invalidPayload("row %d: %s", row.Line, geo.ReasonInvalidCoordinates)
		}
		if !fence.Contains(lat, lon) {
			return nil, invalidPayload("row %d: %s", row.Line, geo.ReasonOutsideBounds)
		}

		subtotal, err := strconv.ParseFloat(f[schema.ColumnSubtotal], 64)
		if err != nil || math.IsNaN(subtotal) || math.IsInf(subtotal, 0) || subtotal < 0 || subtotal >= MaxSubtotal {
			return nil, invalidPayload("row %d: invalid subtotal %q", row.Line, f[schema.ColumnSubtotal])
		}

		id := f[schema.ColumnID]
		if id == "" {
			id = models.NewOrderID()
		}
		if prev, dup := seen[id]; dup {
			return nil, invalidPayload("row %d: order id %q already used on row %d", row.Line, id, prev)
		}
		seen[id] = row.Line

		ts := f[schema.ColumnTimestamp]
		if ts == "" {
			ts = now.Format(time.RFC3339)
		}

		bid := batchID
		orders = append(orders, models.Order{
			RowID:     uuid.New(),
			ID:        id,
			BatchID:   &bid,
			Latitude:  lat,
			Longitude: lon,
			Subtotal:  subtotal,
			Timestamp: ts,
			Address:   f[schema.ColumnAddress],
			Geohash:   geo.Geohash(lat, lon),
			CreatedAt: now,
		})
	}
	return orders, nil
}

// storeError turns constraint violations into readable rejections.
func storeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return invalidPayload("an order with the same id already exists")
		case pgNumericOverflow:
			return invalidPayload("subtotal is too large")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
