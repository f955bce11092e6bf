package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wellness-kit/order-intake/internal/dataset"
	"github.com/wellness-kit/order-intake/internal/geo"
	"github.com/wellness-kit/order-intake/internal/ingest"
	"github.com/wellness-kit/order-intake/internal/models"
	"github.com/wellness-kit/order-intake/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const mixedCSV = `latitude,longitude,subtotal
40.7128,-74.0060,10
34.0522,-118.2437,20
42.6526,-73.7562,30
abc,-74.0,40`

const cleanCSV = `latitude,longitude,subtotal
40.7128,-74.0060,10
42.6526,-73.7562,30`

func upload(name, text string) Upload {
	return Upload{Filename: name, ContentType: "text/csv", Data: []byte(text)}
}

func newTestSession() *Session {
	return New(geo.MustFence(geo.NewYorkState))
}

type recordingStore struct {
	mu       sync.Mutex
	payloads []string
	err      error
	block    chan struct{}
}

func (r *recordingStore) ImportBatch(_ context.Context, req storage.ImportRequest) (*models.ImportResult, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.payloads = append(r.payloads, string(req.Payload))
	return &models.ImportResult{Imported: 1}, nil
}

func (r *recordingStore) CreateOrder(context.Context, models.Order) (*models.Order, error) {
	return nil, errors.New("not used")
}

func TestLoad_ClassifiesAndTriages(t *testing.T) {
	s := newTestSession()

	ds, err := s.Load(context.Background(), upload("orders.csv", mixedCSV))
	require.NoError(t, err)
	assert.Same(t, ds, s.Dataset())

	statuses := make([]dataset.Status, 0, ds.Len())
	for _, r := range ds.Records {
		statuses = append(statuses, r.Validation.Status)
	}
	want := []dataset.Status{dataset.StatusInvalid, dataset.StatusInvalid, dataset.StatusValid, dataset.StatusValid}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("statuses after load (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{3, 5, 2, 4}, []int{ds.Records[0].Line, ds.Records[1].Line, ds.Records[2].Line, ds.Records[3].Line})

	r := s.Readiness()
	assert.False(t, r.Open())
	assert.Equal(t, 2, r.InvalidCount)
}

func TestLoad_NotCSV(t *testing.T) {
	s := newTestSession()

	ds, err := s.Load(context.Background(), Upload{Filename: "orders.xlsx", ContentType: "application/vnd.ms-excel", Data: []byte("x")})
	require.NoError(t, err)
	assert.Zero(t, ds.Len())
	assert.Equal(t, []string{ingest.MsgNotCSV}, ds.Report.RowErrors)
	assert.Contains(t, s.Readiness().Blockers(), dataset.BlockNoData)
}

func TestLoad_SupersededByNewerLoad(t *testing.T) {
	s := newTestSession()

	entered := make(chan struct{})
	release := make(chan struct{})
	s.pipeline = func(up Upload) *dataset.Dataset {
		if up.Filename == "first.csv" {
			close(entered)
			<-release
		}
		return s.build(up)
	}

	first := s.LoadAsync(context.Background(), upload("first.csv", mixedCSV))
	<-entered

	second, err := s.Load(context.Background(), upload("second.csv", cleanCSV))
	require.NoError(t, err)

	close(release)
	res := <-first
	assert.ErrorIs(t, res.Err, ErrSuperseded)
	assert.Nil(t, res.Dataset)

	assert.Same(t, second, s.Dataset())
	assert.Equal(t, "second.csv", s.Dataset().Filename)
}

func TestLoad_SupersededByClear(t *testing.T) {
	s := newTestSession()

	release := make(chan struct{})
	s.pipeline = func(up Upload) *dataset.Dataset {
		<-release
		return s.build(up)
	}

	pending := s.LoadAsync(context.Background(), upload("a.csv", cleanCSV))
	s.Clear()
	close(release)

	assert.ErrorIs(t, (<-pending).Err, ErrSuperseded)
	assert.Nil(t, s.Dataset())
}

func TestLoad_CancelledContextCommitsNothing(t *testing.T) {
	s := newTestSession()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx, upload("a.csv", cleanCSV))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, s.Dataset())
}

func TestOperations_WithoutDataset(t *testing.T) {
	s := newTestSession()

	_, err := s.Triage()
	assert.ErrorIs(t, err, ErrNoDataset)
	_, _, err = s.StripInvalid()
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = s.Submit(context.Background(), &recordingStore{})
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestSubmit_GateFlow(t *testing.T) {
	s := newTestSession()
	store := &recordingStore{}

	_, err := s.Load(context.Background(), upload("orders.csv", mixedCSV))
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), store)
	require.ErrorIs(t, err, ErrGateClosed)
	assert.Contains(t, err.Error(), dataset.BlockInvalidRows)

	stripped, text, err := s.StripInvalid()
	require.NoError(t, err)
	assert.Equal(t, 2, stripped.Len())
	assert.True(t, s.Readiness().Open())

	res, err := s.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, []string{text}, store.payloads)
	assert.Same(t, res, s.Result())

	_, err = s.Submit(context.Background(), store)
	require.ErrorIs(t, err, ErrGateClosed)
	assert.Contains(t, err.Error(), dataset.BlockSubmitted)
	assert.Len(t, store.payloads, 1)

	// A new file reopens the gate.
	_, err = s.Load(context.Background(), upload("next.csv", cleanCSV))
	require.NoError(t, err)
	assert.True(t, s.Readiness().Open())
	assert.Nil(t, s.Result())
}

func TestSubmit_StoreFailureLeavesGateOpen(t *testing.T) {
	s := newTestSession()
	store := &recordingStore{err: &storage.CollaboratorError{StatusCode: 400, Message: "Row 2: bad subtotal"}}

	_, err := s.Load(context.Background(), upload("orders.csv", cleanCSV))
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), store)
	require.Error(t, err)
	assert.Equal(t, "Row 2: bad subtotal", err.Error())
	assert.False(t, s.Readiness().Submitted)
	assert.True(t, s.Readiness().Open())
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	s := newTestSession()
	store := &recordingStore{block: make(chan struct{})}

	_, err := s.Load(context.Background(), upload("orders.csv", cleanCSV))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), store)
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, busy := s.idleSince()
		return busy
	}, time.Second, time.Millisecond)

	_, err = s.Submit(context.Background(), store)
	assert.ErrorIs(t, err, ErrSubmitting)

	close(store.block)
	require.NoError(t, <-done)
	assert.True(t, s.Readiness().Submitted)
}

func TestSubmit_LoadDuringSubmissionIsNotMarked(t *testing.T) {
	s := newTestSession()
	store := &recordingStore{block: make(chan struct{})}

	_, err := s.Load(context.Background(), upload("orders.csv", cleanCSV))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), store)
		done <- err
	}()
	require.Eventually(t, func() bool {
		_, busy := s.idleSince()
		return busy
	}, time.Second, time.Millisecond)

	_, err = s.Load(context.Background(), upload("other.csv", cleanCSV))
	require.NoError(t, err)

	close(store.block)
	require.NoError(t, <-done)
	assert.False(t, s.Readiness().Submitted)
}

func TestTriage_Idempotent(t *testing.T) {
	s := newTestSession()
	_, err := s.Load(context.Background(), upload("orders.csv", mixedCSV))
	require.NoError(t, err)

	once, err := s.Triage()
	require.NoError(t, err)
	twice, err := s.Triage()
	require.NoError(t, err)

	if diff := cmp.Diff(once.Records, twice.Records); diff != "" {
		t.Errorf("second triage changed records (-once +twice):\n%s", diff)
	}
}
