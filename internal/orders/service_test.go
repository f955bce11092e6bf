package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellness-kit/order-intake/internal/geo"
	"github.com/wellness-kit/order-intake/internal/geocode"
	"github.com/wellness-kit/order-intake/internal/models"
	"github.com/wellness-kit/order-intake/internal/storage"
)

type fakeGeocoder struct {
	state string
	calls int
}

func (f *fakeGeocoder) ReverseState(context.Context, float64, float64) (string, bool, error) {
	f.calls++
	return f.state, f.state != "", nil
}

type fakeStore struct {
	created []models.Order
	err     error
}

func (f *fakeStore) ImportBatch(context.Context, storage.ImportRequest) (*models.ImportResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeStore) CreateOrder(_ context.Context, o models.Order) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, o)
	return &o, nil
}

func newTestService(state string) (*Service, *fakeGeocoder, *fakeStore) {
	g := &fakeGeocoder{state: state}
	st := &fakeStore{}
	svc := NewService(geo.MustFence(geo.NewYorkState), g, st, "New York")
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC) }
	return svc, g, st
}

func TestCreate_Accepted(t *testing.T) {
	svc, _, st := newTestService("New York")

	order, err := svc.Create(context.Background(), Draft{Latitude: " 40.7128", Longitude: "-74.0060", Subtotal: "25.00"})
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-[0-9A-F]{8}$`, order.ID)
	assert.Equal(t, "2026-05-04T09:30:00Z", order.Timestamp)
	assert.Equal(t, 25.0, order.Subtotal)
	require.Len(t, st.created, 1)
	assert.Equal(t, order.ID, st.created[0].ID)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		state       string
		draft       Draft
		reason      string
		geocodeUsed bool
	}{
		{"non-numeric", "New York", Draft{Latitude: "abc", Longitude: "-74", Subtotal: "1"}, MsgInvalidCoordinates, false},
		{"outside box", "New York", Draft{Latitude: "34.05", Longitude: "-118.24", Subtotal: "1"}, MsgOutsideBounds, false},
		{"other state", "New Jersey", Draft{Latitude: "40.73", Longitude: "-74.17", Subtotal: "1"},
			"Location is in New Jersey, not New York State. Only NY locations are accepted.", true},
		{"unverifiable", "", Draft{Latitude: "40.73", Longitude: "-74.17", Subtotal: "1"}, geocode.MsgUnverified, true},
		{"zero subtotal", "New York", Draft{Latitude: "40.71", Longitude: "-74.0", Subtotal: "0"}, MsgInvalidSubtotal, true},
		{"bad subtotal", "New York", Draft{Latitude: "40.71", Longitude: "-74.0", Subtotal: "ten"}, MsgInvalidSubtotal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, g, st := newTestService(tt.state)

			_, err := svc.Create(context.Background(), tt.draft)
			require.Error(t, err)
			assert.True(t, IsRejection(err))
			assert.Equal(t, tt.reason, err.Error())
			assert.Equal(t, tt.geocodeUsed, g.calls > 0)
			assert.Empty(t, st.created)
		})
	}
}

func TestCreate_StoreFailureSurfaced(t *testing.T) {
	svc, _, st := newTestService("New York")
	st.err = &storage.CollaboratorError{StatusCode: 500, Message: "Failed to create order: db down"}

	_, err := svc.Create(context.Background(), Draft{Latitude: "40.71", Longitude: "-74.0", Subtotal: "3.5"})
	require.Error(t, err)
	assert.False(t, IsRejection(err))
	assert.Equal(t, "Failed to create order: db down", err.Error())
}
