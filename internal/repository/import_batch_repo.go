package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wellness-kit/order-intake/internal/models"
)

// Import batch statuses.
const (
	BatchStatusPending   = "pending"
	BatchStatusCompleted = "completed"
)

// ImportBatchRepository handles data access for bulk import batches
type ImportBatchRepository struct {
	db DBTX
}

// NewImportBatchRepository creates a new import batch repository
func NewImportBatchRepository(db DBTX) *ImportBatchRepository {
	return &ImportBatchRepository{db: db}
}

const batchColumns = `id, filename, row_count, fingerprint, status, created_at, updated_at`

func scanBatch(row pgx.Row, b *models.ImportBatch) error {
	return row.Scan(
		&b.ID,
		&b.Filename,
		&b.RowCount,
		&b.Fingerprint,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
}

// Create inserts a new batch record
func (r *ImportBatchRepository) Create(ctx context.Context, b *models.ImportBatch) error {
	if b == nil {
		return errors.New("import batch cannot be nil")
	}

	query := `
		INSERT INTO import_batches (id, filename, row_count, fingerprint, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + batchColumns

	return scanBatch(r.db.QueryRow(ctx, query,
		b.ID, b.Filename, b.RowCount, b.Fingerprint, b.Status, b.CreatedAt, b.UpdatedAt,
	), b)
}

// MarkCompleted records the final row count and flips the batch status.
func (r *ImportBatchRepository) MarkCompleted(ctx context.Context, id uuid.UUID, rowCount int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE import_batches
		SET status = $2, row_count = $3, updated_at = NOW()
		WHERE id = $1`, id, BatchStatusCompleted, rowCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("import batch not found")
	}
	return nil
}
