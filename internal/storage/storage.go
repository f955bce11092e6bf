// Package storage is the order-storage collaborator: the place a cleaned
// batch or a single order goes once every local check has passed.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/wellness-kit/order-intake/internal/models"
)

// ErrDuplicateBatch is returned when an identical payload was already imported.
var ErrDuplicateBatch = errors.New("batch already imported")

// ErrInvalidPayload is returned when a batch cannot be stored as a whole.
var ErrInvalidPayload = errors.New("invalid import payload")

// ErrUnreachable is returned when the remote order service cannot be reached.
var ErrUnreachable = errors.New("order service unreachable")

// IsUpstream reports whether err came from the external order service rather
// than from this process or its own database.
func IsUpstream(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce) || errors.Is(err, ErrUnreachable)
}

// ImportRequest carries the re-serialized, valid-only CSV text of one file.
type ImportRequest struct {
	Filename string
	Payload  []byte
}

// Store accepts orders. ImportBatch is all-or-nothing: on error no order of
// the batch is stored.
type Store interface {
	ImportBatch(ctx context.Context, req ImportRequest) (*models.ImportResult, error)
	CreateOrder(ctx context.Context, order models.Order) (*models.Order, error)
}

// CollaboratorError is a rejection reported by a remote store. Message is the
// text the store returned and is shown to operators as is.
type CollaboratorError struct {
	StatusCode int
	Message    string
}

func (e *CollaboratorError) Error() string {
	return e.Message
}

// Fingerprint identifies a payload for idempotent imports.
func Fingerprint(payload []byte) string {
	sum := xxh3.Hash128(payload).Bytes()
	return hex.EncodeToString(sum[:])
}

func invalidPayload(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}
