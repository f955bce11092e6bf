// Package geocode confirms which state a coordinate falls in by asking a
// reverse-geocoding service.
package geocode

import (
	"context"
	"fmt"
	"log/slog"
)

// MsgUnverified is the rejection used when no state could be determined.
const MsgUnverified = "Could not verify location. Please check coordinates and try again."

// Geocoder resolves a coordinate to a first-level administrative area.
// found is false when the service has no state for the point.
type Geocoder interface {
	ReverseState(ctx context.Context, lat, lon float64) (state string, found bool, err error)
}

// VerifyJurisdiction accepts the point only when the geocoder places it in
// target. The returned reason is empty on acceptance. Lookup failures are
// logged and reported as unverifiable, never as a system error.
func VerifyJurisdiction(ctx context.Context, g Geocoder, lat, lon float64, target string) (ok bool, reason string) {
	state, found, err := g.ReverseState(ctx, lat, lon)
	if err != nil {
		slog.Default().Warn("reverse geocode failed",
			"service", "geocode",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return false, MsgUnverified
	}
	if !found || state == "" {
		return false, MsgUnverified
	}
	if state != target {
		return false, fmt.Sprintf("Location is in %s, not %s State. Only NY locations are accepted.", state, target)
	}
	return true, ""
}
