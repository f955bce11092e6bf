// Package orders creates single orders typed in by an operator.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wellness-kit/order-intake/internal/geo"
	"github.com/wellness-kit/order-intake/internal/geocode"
	"github.com/wellness-kit/order-intake/internal/models"
	"github.com/wellness-kit/order-intake/internal/storage"
)

// Rejection messages shown to the operator.
const (
	MsgInvalidCoordinates = "Please enter valid numeric coordinates."
	MsgOutsideBounds      = "Coordinates are outside New York State bounds. Only NY locations are accepted."
	MsgInvalidSubtotal    = "Please enter a valid subtotal amount."
)

// RejectionError means the draft failed a check; Reason is operator-facing.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func reject(reason string) error { return &RejectionError{Reason: reason} }

// IsRejection reports whether err is a RejectionError.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

// Draft is the raw form input.
type Draft struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Subtotal  string `json:"subtotal"`
	Address   string `json:"address"`
}

// Service validates drafts and hands accepted orders to the store.
type Service struct {
	fence       *geo.Fence
	geocoder    geocode.Geocoder
	store       storage.Store
	targetState string
	now         func() time.Time
}

// NewService wires the checks and the store.
func NewService(fence *geo.Fence, geocoder geocode.Geocoder, store storage.Store, targetState string) *Service {
	return &Service{
		fence:       fence,
		geocoder:    geocoder,
		store:       store,
		targetState: targetState,
		now:         time.Now,
	}
}

// Create runs the checks in order (coordinates, fence, geocoder, subtotal)
// and stores the order. Failed checks return a *RejectionError; store
// failures are returned unchanged.
func (s *Service) Create(ctx context.Context, d Draft) (*models.Order, error) {
	logger := slog.Default().With("service", "order-create")

	lat, lon, err := geo.ParseCoordinates(strings.TrimSpace(d.Latitude), strings.TrimSpace(d.Longitude))
	if err != nil {
		return nil, reject(MsgInvalidCoordinates)
	}
	if !s.fence.Contains(lat, lon) {
		return nil, reject(MsgOutsideBounds)
	}

	if ok, reason := geocode.VerifyJurisdiction(ctx, s.geocoder, lat, lon, s.targetState); !ok {
		logger.Info("order rejected", "step", "geocode", "reason", reason)
		return nil, reject(reason)
	}

	subtotal, err := strconv.ParseFloat(strings.TrimSpace(d.Subtotal), 64)
	if err != nil || math.IsNaN(subtotal) || math.IsInf(subtotal, 0) || subtotal <= 0 {
		return nil, reject(MsgInvalidSubtotal)
	}

	order := models.Order{
		ID:        models.NewOrderID(),
		Latitude:  lat,
		Longitude: lon,
		Subtotal:  subtotal,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Address:   strings.TrimSpace(d.Address),
	}

	created, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		logger.Error("order store failed", "step", "store", "order_id", order.ID, "error", err)
		return nil, err
	}

	logger.Info("order created", "step", "store", "order_id", created.ID)
	return created, nil
}
