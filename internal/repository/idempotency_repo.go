package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ResourceImportBatch is the resource type recorded for bulk submissions.
const ResourceImportBatch = "import_batch"

// IdempotencyResult holds the outcome of an atomic claim attempt.
type IdempotencyResult struct {
	// AlreadyExists is true when the key was already claimed.
	AlreadyExists bool
	// ResourceID is the resource_id associated with the key (existing or newly claimed).
	ResourceID uuid.UUID
}

// IdempotencyRepository handles atomic idempotency key operations.
type IdempotencyRepository struct {
	db DBTX
}

// NewIdempotencyRepository creates a new idempotency repository.
func NewIdempotencyRepository(db DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Claim atomically attempts to claim key for a resource. If an unexpired key
// is already held for resourceType it returns AlreadyExists=true with the
// original resource_id; otherwise the key is (re)written with the given ttl.
func (r *IdempotencyRepository) Claim(
	ctx context.Context,
	key string,
	resourceType string,
	resourceID uuid.UUID,
	ttl time.Duration,
) (*IdempotencyResult, error) {
	if key == "" {
		return nil, errors.New("idempotency key cannot be empty")
	}

	// The idempotency_keys table PK is (key, resource_type).
	query := `
		WITH inserted AS (
			INSERT INTO idempotency_keys (key, resource_type, resource_id, expires_at)
			VALUES ($1, $2, $3, NOW() + make_interval(secs => $4))
			ON CONFLICT (key, resource_type) DO UPDATE
				SET resource_id = EXCLUDED.resource_id, expires_at = EXCLUDED.expires_at
				WHERE idempotency_keys.expires_at < NOW()
			RETURNING resource_id, FALSE AS already_exists
		)
		SELECT resource_id, already_exists FROM inserted
		UNION ALL
		SELECT resource_id, TRUE AS already_exists
		FROM idempotency_keys
		WHERE key = $1 AND resource_type = $2
		  AND NOT EXISTS (SELECT 1 FROM inserted)
	`

	var result IdempotencyResult
	err := r.db.QueryRow(ctx, query, key, resourceType, resourceID, ttl.Seconds()).Scan(
		&result.ResourceID,
		&result.AlreadyExists,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("unexpected empty result from idempotency claim")
		}
		return nil, err
	}

	return &result, nil
}

// CleanExpired removes expired idempotency keys. Call from a background job.
func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
