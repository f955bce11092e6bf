// Package geo holds the static geofence used to accept bulk order rows.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Rejection reasons attached to rows that fail the fence.
const (
	ReasonInvalidCoordinates = "Invalid coordinates"
	ReasonOutsideBounds      = "Outside NY state bounds"
)

// ErrInvalidCoordinates is returned when a latitude or longitude cell is not a finite number.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Bounds is an axis-aligned latitude/longitude box in degrees, inclusive on every edge.
type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// NewYorkState approximates New York State.
var NewYorkState = Bounds{
	MinLat: 40.496,
	MaxLat: 45.016,
	MinLon: -79.763,
	MaxLon: -71.856,
}

// Fence tests points against Bounds.
type Fence struct {
	bounds Bounds
	rect   s2.Rect
}

// NewFence builds a fence. Bounds must be ordered and inside the valid
// latitude/longitude ranges.
func NewFence(b Bounds) (*Fence, error) {
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return nil, fmt.Errorf("geofence bounds are inverted: %+v", b)
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return nil, fmt.Errorf("geofence bounds out of range: %+v", b)
	}

	rect := s2.Rect{
		Lat: r1.Interval{Lo: radians(b.MinLat), Hi: radians(b.MaxLat)},
		Lng: s1.IntervalFromEndpoints(radians(b.MinLon), radians(b.MaxLon)),
	}
	return &Fence{bounds: b, rect: rect}, nil
}

// MustFence is NewFence for static bounds known to be valid.
func MustFence(b Bounds) *Fence {
	f, err := NewFence(b)
	if err != nil {
		panic(err)
	}
	return f
}

// Bounds returns the fence's box.
func (f *Fence) Bounds() Bounds { return f.bounds }

// Contains reports whether (lat, lon) lies inside the fence, edges included.
func (f *Fence) Contains(lat, lon float64) bool {
	return f.rect.ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}

// radians converts exactly the way s2.LatLngFromDegrees does, so a point on
// an edge compares equal to that edge.
func radians(deg float64) float64 {
	return (s1.Angle(deg) * s1.Degree).Radians()
}

// ParseCoordinates parses a latitude/longitude pair. NaN and infinities are rejected.
func ParseCoordinates(latStr, lonStr string) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, 0, ErrInvalidCoordinates
	}
	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, ErrInvalidCoordinates
	}
	return lat, lon, nil
}

// Check classifies one coordinate pair. ok is false with a reason when the
// cells do not parse or the point is outside the fence.
func (f *Fence) Check(latStr, lonStr string) (ok bool, reason string) {
	lat, lon, err := ParseCoordinates(latStr, lonStr)
	if err != nil {
		return false, ReasonInvalidCoordinates
	}
	if !f.Contains(lat, lon) {
		return false, ReasonOutsideBounds
	}
	return true, ""
}

// Geohash encodes a point at full precision.
func Geohash(lat, lon float64) string {
	return geohash.Encode(lat, lon)
}
