package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wellness-kit/order-intake/internal/geo"
)

// Registry keeps the sessions of the HTTP API by id.
type Registry struct {
	fence *geo.Fence
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty registry whose sessions use fence.
func NewRegistry(fence *geo.Fence) *Registry {
	return &Registry{
		fence:    fence,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create registers a new empty session.
func (r *Registry) Create() *Session {
	s := newSession(r.fence, r.now)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get looks a session up by id.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete clears and forgets a session. It reports whether the id was known.
func (r *Registry) Delete(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Clear()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than ttl. Sessions with a
// submission in flight are kept.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		touched, busy := s.idleSince()
		if busy || touched.After(cutoff) {
			continue
		}
		expired = append(expired, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Clear()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(ttl); n > 0 {
				slog.Info("idle sessions expired", "service", "session-registry", "count", n, "remaining", r.Len())
			}
		}
	}
}
