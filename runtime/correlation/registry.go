package correlation

import (
	"fmt"
	"sync"
	"time"

	"github.com/viant/geoflow/internal/clock"
)

// Call is one outstanding execution request awaiting its terminal response.
// Attempt ids change on every resubmission while the correlation id stays fixed.
type Call[R any] struct {
	ID        string
	AttemptID string
	Attempt   int
	IssuedAt  time.Time
	AckedAt   *time.Time

	mu     sync.Mutex
	acked  chan struct{}
	result chan R
}

// current reports whether attemptID names the latest attempt; an empty id is unattributed and matches
func (c *Call[R]) current(attemptID string) bool {
	return attemptID == "" || attemptID == c.AttemptID
}

// Result delivers the terminal response
func (c *Call[R]) Result() <-chan R {
	return c.result
}

// Acked is closed once a worker acknowledged the current attempt
func (c *Call[R]) Acked() <-chan struct{} {
	return c.acked
}

// Registry tracks outstanding calls keyed by correlation id and remembers recently
// resolved ids so duplicate responses from an at-least-once channel can be dropped.
type Registry[R any] struct {
	mu       sync.Mutex
	pending  map[string]*Call[R]
	resolved map[string]time.Time
	window   time.Duration
}

// Outcome of offering a response to the registry
type Outcome int

const (
	Delivered Outcome = iota
	Duplicate
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Duplicate:
		return "duplicate"
	}
	return "unknown"
}

// NewRegistry creates a registry remembering resolved ids for window
func NewRegistry[R any](window time.Duration) *Registry[R] {
	return &Registry[R]{
		pending:  make(map[string]*Call[R]),
		resolved: make(map[string]time.Time),
		window:   window,
	}
}

// Open registers a call; only one call per correlation id may be outstanding
func (r *Registry[R]) Open(id string) (*Call[R], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; ok {
		return nil, fmt.Errorf("correlation %v already has an outstanding call", id)
	}
	delete(r.resolved, id)
	call := &Call[R]{ID: id, acked: make(chan struct{}), result: make(chan R, 1)}
	r.pending[id] = call
	return call, nil
}

// Attempt stamps a new attempt on an open call
func (r *Registry[R]) Attempt(call *Call[R], attemptID string) {
	call.mu.Lock()
	defer call.mu.Unlock()
	call.Attempt++
	call.AttemptID = attemptID
	call.IssuedAt = clock.Now()
}

// Ack marks the call as picked up by a worker. The first ack of the current attempt wins,
// acks of earlier attempts are duplicates.
func (r *Registry[R]) Ack(id, attemptID string) Outcome {
	r.mu.Lock()
	call, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return r.missing(id)
	}
	call.mu.Lock()
	defer call.mu.Unlock()
	if call.AckedAt != nil || !call.current(attemptID) {
		return Duplicate
	}
	now := clock.Now()
	call.AckedAt = &now
	close(call.acked)
	return Delivered
}

// Resolve hands the terminal response of the current attempt to the waiting dispatcher
// exactly once. Responses of earlier attempts are duplicates.
func (r *Registry[R]) Resolve(id, attemptID string, response R) Outcome {
	return r.resolve(id, attemptID, response, false)
}

// ResolveAny hands the terminal response of any attempt of an open call to the waiting dispatcher
func (r *Registry[R]) ResolveAny(id string, response R) Outcome {
	return r.resolve(id, "", response, true)
}

func (r *Registry[R]) resolve(id, attemptID string, response R, anyAttempt bool) Outcome {
	r.mu.Lock()
	call, ok := r.pending[id]
	if ok && !anyAttempt {
		call.mu.Lock()
		current := call.current(attemptID)
		call.mu.Unlock()
		if !current {
			r.mu.Unlock()
			return Duplicate
		}
	}
	if ok {
		delete(r.pending, id)
		r.resolved[id] = clock.Now()
	}
	r.mu.Unlock()
	if !ok {
		return r.missing(id)
	}
	call.result <- response
	return Delivered
}

// Close abandons an open call, e.g. after cancellation; late responses are reported as duplicates
func (r *Registry[R]) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; ok {
		delete(r.pending, id)
		r.resolved[id] = clock.Now()
	}
}

// Pending returns the number of outstanding calls
func (r *Registry[R]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Prune forgets resolved ids older than the window and returns how many were removed
func (r *Registry[R]) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := clock.Now()
	removed := 0
	for id, at := range r.resolved {
		if now.Sub(at) > r.window {
			delete(r.resolved, id)
			removed++
		}
	}
	return removed
}

func (r *Registry[R]) missing(id string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resolved[id]; ok {
		return Duplicate
	}
	return Unknown
}
