// Package session holds the working copy of one uploaded file while an
// operator reviews, cleans and submits it.
//
// A session owns at most one Dataset. Loading a new file supersedes any load
// still in progress: each load captures a generation number when it starts
// and may only commit if that number is still current when it finishes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wellness-kit/order-intake/internal/dataset"
	"github.com/wellness-kit/order-intake/internal/geo"
	"github.com/wellness-kit/order-intake/internal/ingest"
	"github.com/wellness-kit/order-intake/internal/models"
	"github.com/wellness-kit/order-intake/internal/storage"
)

var (
	// ErrSuperseded is returned by a load whose result was discarded because
	// a newer load or a Clear started after it.
	ErrSuperseded = errors.New("load superseded by a newer file")
	// ErrNoDataset is returned when an operation needs a loaded file.
	ErrNoDataset = errors.New("no file loaded")
	// ErrGateClosed is returned by Submit when the upload gate is closed.
	ErrGateClosed = errors.New("upload gate is closed")
	// ErrSubmitting is returned by Submit while another submission is running.
	ErrSubmitting = errors.New("submission already in progress")
)

// Upload is one file as received from the operator.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LoadResult is delivered by LoadAsync.
type LoadResult struct {
	Dataset *dataset.Dataset
	Err     error
}

// Session is safe for concurrent use.
type Session struct {
	ID uuid.UUID

	fence    *geo.Fence
	logger   *slog.Logger
	now      func() time.Time
	pipeline func(Upload) *dataset.Dataset

	mu         sync.Mutex
	generation uint64
	current    *dataset.Dataset
	submitted  bool
	submitting bool
	result     *models.ImportResult
	touched    time.Time
}

// New creates an empty session that validates rows against fence.
func New(fence *geo.Fence) *Session {
	return newSession(fence, time.Now)
}

func newSession(fence *geo.Fence, now func() time.Time) *Session {
	id := uuid.New()
	s := &Session{
		ID:      id,
		fence:   fence,
		logger:  slog.Default().With("service", "import-pipeline", "session_id", id),
		now:     now,
		touched: now(),
	}
	s.pipeline = s.build
	return s
}

// Load parses and classifies up and makes it the session's dataset. It
// returns ErrSuperseded if another Load or Clear started meanwhile, or the
// context error if ctx was cancelled; in both cases nothing is committed.
func (s *Session) Load(ctx context.Context, up Upload) (*dataset.Dataset, error) {
	gen := s.begin(up.Filename)
	ds := s.pipeline(up)
	if err := s.commit(ctx, gen, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadAsync is Load on a background goroutine. The supersession point is the
// call itself: a later Load, LoadAsync or Clear wins over this one.
func (s *Session) LoadAsync(ctx context.Context, up Upload) <-chan LoadResult {
	gen := s.begin(up.Filename)
	out := make(chan LoadResult, 1)
	go func() {
		defer close(out)
		ds := s.pipeline(up)
		if err := s.commit(ctx, gen, ds); err != nil {
			out <- LoadResult{Err: err}
			return
		}
		out <- LoadResult{Dataset: ds}
	}()
	return out
}

// begin supersedes whatever is loaded or loading and returns the new generation.
func (s *Session) begin(filename string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.current = nil
	s.submitted = false
	s.result = nil
	s.touched = s.now()
	s.logger.Debug("load started", "step", "begin", "generation", s.generation, "filename", filename)
	return s.generation
}

// build runs parse, classify and triage on a private dataset.
func (s *Session) build(up Upload) *dataset.Dataset {
	if !ingest.IsCSV(up.Filename, up.ContentType) {
		return dataset.New(up.Filename, &ingest.Table{Delimiter: ingest.Comma}, ingest.FileError(ingest.MsgNotCSV))
	}

	start := time.Now()
	table, report := ingest.ParseBytes(up.Data)
	s.logger.Info("file parsed",
		"step", "parse",
		"filename", up.Filename,
		"rows", len(table.Rows),
		"row_errors", len(report.RowErrors),
		"missing_columns", report.MissingColumns,
	)

	ds := dataset.Process(up.Filename, table, report, s.fence)
	counts := ds.Counts()
	s.logger.Info("rows classified",
		"step", "classify",
		"valid", counts.Valid,
		"invalid", counts.Invalid,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds
}

func (s *Session) commit(ctx context.Context, gen uint64, ds *dataset.Dataset) error {
	if err := ctx.Err(); err != nil {
		s.logger.Info("load cancelled", "step", "commit", "generation", gen)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Info("load superseded", "step", "commit", "generation", gen, "current", s.generation)
		return ErrSuperseded
	}
	s.current = ds
	s.touched = s.now()
	return nil
}

// Dataset returns the committed dataset, or nil. Datasets are never mutated
// after commit, so the result may be read without holding any lock.
func (s *Session) Dataset() *dataset.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = s.now()
	return s.current
}

// Triage moves failed rows to the top. It is idempotent.
func (s *Session) Triage() (*dataset.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoDataset
	}
	s.current = dataset.Triage(s.current)
	s.touched = s.now()
	return s.current, nil
}

// StripInvalid drops every row that is not valid and returns the cleaned
// dataset with its serialized text. It cannot be undone.
func (s *Session) StripInvalid() (*dataset.Dataset, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, "", ErrNoDataset
	}
	before := s.current.Len()
	stripped, text := dataset.StripInvalid(s.current)
	s.current = stripped
	s.touched = s.now()
	s.logger.Info("invalid rows removed", "step", "strip", "removed", before-stripped.Len(), "kept", stripped.Len())
	return stripped, text, nil
}

// Readiness reports the gate inputs for the current dataset.
func (s *Session) Readiness() dataset.Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dataset.ReadinessOf(s.current, s.submitted)
}

// Result returns what the store reported for the last successful submission.
func (s *Session) Result() *models.ImportResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Clear drops the dataset and supersedes any load in progress.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.current = nil
	s.submitted = false
	s.result = nil
	s.touched = s.now()
}

// Submit sends the current dataset to store when the gate is open. The store
// call runs without the session lock; if a new file was loaded meanwhile the
// result is returned but the new dataset is not marked submitted.
func (s *Session) Submit(ctx context.Context, store storage.Store) (*models.ImportResult, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, ErrNoDataset
	}
	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmitting
	}
	r := dataset.ReadinessOf(s.current, s.submitted)
	if !r.Open() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGateClosed, strings.Join(r.Blockers(), "; "))
	}
	gen := s.generation
	ds := s.current
	s.submitting = true
	s.mu.Unlock()

	start := time.Now()
	res, err := store.ImportBatch(ctx, storage.ImportRequest{
		Filename: ds.Filename,
		Payload:  []byte(ds.Serialize()),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	s.touched = s.now()
	if err != nil {
		s.logger.Warn("submission failed", "step", "submit", "error", err)
		return nil, err
	}
	if gen == s.generation {
		s.submitted = true
		s.result = res
	}
	s.logger.Info("batch submitted",
		"step", "submit",
		"rows", ds.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// idleSince reports the last time the session was used and whether a
// submission is running.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched, s.submitting
}
