package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellness-kit/order-intake/internal/geo"
	"github.com/wellness-kit/order-intake/internal/ingest"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func parse(t *testing.T, text string) *ingest.Table {
	t.Helper()
	table, report := ingest.Parse(text)
	require.True(t, report.SchemaComplete())
	require.Empty(t, report.RowErrors)
	return table
}

func TestBuildOrders(t *testing.T) {
	table := parse(t, "latitude,longitude,subtotal,address,id\n40.7128,-74.006,25.5,\"New York, NY\",\n42.6526,-73.7562,10,Albany,ORD-A")
	batchID := uuid.New()

	orders, err := BuildOrders(table, geo.MustFence(geo.NewYorkState), batchID, testNow)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Regexp(t, `^ORD-[0-9A-F]{8}$`, first.ID, "missing id is generated")
	assert.Equal(t, 25.5, first.Subtotal)
	assert.Equal(t, "New York, NY", first.Address)
	assert.Equal(t, testNow.Format(time.RFC3339), first.Timestamp)
	assert.Equal(t, batchID, *first.BatchID)
	assert.NotEmpty(t, first.Geohash)
	assert.Equal(t, "dr5r", first.Geohash[:4])

	assert.Equal(t, "ORD-A", orders[1].ID)
	assert.NotEqual(t, orders[0].RowID, orders[1].RowID)
}

func TestBuildOrders_AllOrNothing(t *testing.T) {
	fence := geo.MustFence(geo.NewYorkState)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"bad subtotal", "latitude,longitude,subtotal\n40.7,-74.0,10\n40.7,-74.0,abc", "row 3: invalid subtotal"},
		{"NaN subtotal", "latitude,longitude,subtotal\n40.7,-74.0,NaN", "row 2: invalid subtotal"},
		{"subtotal beyond column precision", "latitude,longitude,subtotal\n40.7,-74.0,1e12", "row 2: invalid subtotal"},
		{"subtotal at limit", "latitude,longitude,subtotal\n40.7,-74.0,10000000000", "row 2: invalid subtotal"},
		{"negative subtotal", "latitude,longitude,subtotal\n40.7,-74.0,-1", "row 2: invalid subtotal"},
		{"outside fence", "latitude,longitude,subtotal\n34.05,-118.24,10", "row 2: Outside NY state bounds"},
		{"bad coordinates", "latitude,longitude,subtotal\nabc,-74.0,10", "row 2: Invalid coordinates"},
		{"duplicate id", "id,latitude,longitude,subtotal\nX,40.7,-74.0,1\nX,40.8,-74.0,2", "order id \"X\" already used on row 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := BuildOrders(parse(t, tt.text), fence, uuid.New(), testNow)
			assert.Nil(t, orders)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPayload))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildOrders_LargestStorableSubtotal(t *testing.T) {
	orders, err := BuildOrders(parse(t, "latitude,longitude,subtotal\n40.7,-74.0,9999999999.99"), geo.MustFence(geo.NewYorkState), uuid.New(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 9999999999.99, orders[0].Subtotal)
}

func TestStoreError(t *testing.T) {
	overflow := storeError("insert orders", &pgconn.PgError{Code: "22003", Message: "numeric field overflow"})
	assert.ErrorIs(t, overflow, ErrInvalidPayload)
	assert.Contains(t, overflow.Error(), "subtotal is too large")

	dup := storeError("insert orders", &pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, dup, ErrInvalidPayload)

	other := storeError("insert orders", errors.New("conn closed"))
	assert.NotErrorIs(t, other, ErrInvalidPayload)
	assert.False(t, IsUpstream(other))
	assert.Equal(t, "insert orders: conn closed", other.Error())
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte(payload))
	assert.Len(t, a, 32)
	assert.Equal(t, a, Fingerprint([]byte(payload)))
	assert.NotEqual(t, a, Fingerprint([]byte(payload+"\n")))
}
