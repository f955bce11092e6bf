package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellness-kit/order-intake/internal/models"
)

const payload = "id,latitude,longitude,timestamp,subtotal,address\nORD-1,40.7128,-74.006,2026-01-01T10:00:00Z,10,NYC"

func TestRemote_ImportBatch_SendsMultipartFile(t *testing.T) {
	var (
		gotAuth     string
		gotFilename string
		gotBody     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/import", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")

		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = hdr.Filename
		b, _ := io.ReadAll(file)
		gotBody = string(b)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"imported": 1}`))
	}))
	defer srv.Close()

	store := NewRemote(srv.URL+"/", "tok-123", 5*time.Second)
	result, err := store.ImportBatch(context.Background(), ImportRequest{Filename: "orders.csv", Payload: []byte(payload)})

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "orders.csv", gotFilename)
	assert.Equal(t, payload, gotBody)
	assert.Equal(t, 1, result.Imported)
	assert.JSONEq(t, `{"imported": 1}`, string(result.Raw))
}

func TestRemote_ImportBatch_FailureTextIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Row 3: subtotal must be positive\n"))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, "", time.Second).ImportBatch(context.Background(), ImportRequest{Filename: "a.csv", Payload: []byte(payload)})

	var collab *CollaboratorError
	require.True(t, errors.As(err, &collab))
	assert.Equal(t, http.StatusBadRequest, collab.StatusCode)
	assert.Equal(t, "Row 3: subtotal must be positive", err.Error())
}

func TestRemote_ImportBatch_EmptyFailureBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, "", time.Second).ImportBatch(context.Background(), ImportRequest{Filename: "a.csv", Payload: []byte(payload)})
	require.Error(t, err)
	assert.Equal(t, MsgImportFailed, err.Error())
}

func TestRemote_CreateOrder(t *testing.T) {
	var got models.Order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"latitude": 40.7, "longitude": -74.0, "subtotal": 12.5, "timestamp": "2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	order := models.Order{ID: "ORD-ABCDEF12", Latitude: 40.7, Longitude: -74.0, Subtotal: 12.5, Timestamp: "2026-01-01T00:00:00Z"}
	created, err := NewRemote(srv.URL, "t", time.Second).CreateOrder(context.Background(), order)

	require.NoError(t, err)
	assert.Equal(t, "ORD-ABCDEF12", got.ID)
	assert.Equal(t, "ORD-ABCDEF12", created.ID, "id is kept when the service does not echo it")
	assert.Equal(t, 12.5, created.Subtotal)
}

func TestRemote_CreateOrder_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("duplicate order"))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, "t", time.Second).CreateOrder(context.Background(), models.Order{ID: "ORD-1"})
	require.Error(t, err)
	assert.Equal(t, "Failed to create order: duplicate order", err.Error())
}

func TestRemote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewRemote(url, "", time.Second).ImportBatch(context.Background(), ImportRequest{Filename: "a.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order service unreachable")
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, IsUpstream(err))
}

func TestIsUpstream(t *testing.T) {
	assert.True(t, IsUpstream(&CollaboratorError{StatusCode: 500, Message: "boom"}))
	assert.True(t, IsUpstream(fmt.Errorf("submit: %w", &CollaboratorError{StatusCode: 400, Message: "bad"})))
	assert.False(t, IsUpstream(errors.New("claim fingerprint: conn closed")))
	assert.False(t, IsUpstream(invalidPayload("row 2: bad")))
}

func TestRemote_ImportBatch_UnexpectedResponseShape(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"imported":"two"}`))
	}))
	defer srv.Close()

	res, err := NewRemote(srv.URL, "", time.Second).ImportBatch(context.Background(), ImportRequest{Filename: "a.csv", Payload: []byte(payload)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"imported":"two"}`, string(res.Raw))
	assert.Zero(t, res.Imported)
	assert.Contains(t, logs.String(), "import response not in expected shape")
	assert.Contains(t, logs.String(), "filename=a.csv")
}
