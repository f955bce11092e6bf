package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/wellness-kit/order-intake/internal/models"
)

// OrderRepository handles data access for stored orders
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// orderColumns is the canonical column list for orders, used across all queries.
const orderColumns = `row_id, order_id, batch_id, latitude, longitude, subtotal,
	ordered_at, address, geohash, created_at`

const insertOrder = `
	INSERT INTO orders (
		row_id, order_id, batch_id, latitude, longitude, subtotal,
		ordered_at, address, geohash, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
	)`

// scanOrder scans a row into an Order using the canonical column order.
func scanOrder(row pgx.Row, o *models.Order) error {
	return row.Scan(
		&o.RowID,
		&o.ID,
		&o.BatchID,
		&o.Latitude,
		&o.Longitude,
		&o.Subtotal,
		&o.Timestamp,
		&o.Address,
		&o.Geohash,
		&o.CreatedAt,
	)
}

func orderArgs(o *models.Order) []any {
	return []any{
		o.RowID, o.ID, o.BatchID, o.Latitude, o.Longitude, o.Subtotal,
		o.Timestamp, o.Address, o.Geohash, o.CreatedAt,
	}
}

// Create inserts a single order
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	if o == nil {
		return errors.New("order cannot be nil")
	}
	return scanOrder(r.db.QueryRow(ctx, insertOrder+` RETURNING `+orderColumns, orderArgs(o)...), o)
}

// BulkInsert queues every order in one pgx batch. Any failure aborts the
// remainder; callers run it inside a transaction so nothing partial is kept.
func (r *OrderRepository) BulkInsert(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range orders {
		batch.Queue(insertOrder, orderArgs(&orders[i])...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(orders); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
