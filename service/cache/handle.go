package cache

import (
	"context"
	"sync/atomic"

	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/types"
)

// Handle represents an in-flight reservation shared by the reserving caller and all waiters.
type Handle struct {
	fingerprint string
	done        chan struct{}
	descriptor  *output.Descriptor
	failure     *types.ErrorRecord
	waiters     int32
}

func newHandle(fingerprint string) *Handle {
	return &Handle{fingerprint: fingerprint, done: make(chan struct{})}
}

// Fingerprint returns the reserved fingerprint
func (h *Handle) Fingerprint() string { return h.fingerprint }

// Done is closed once the reservation is completed or failed
func (h *Handle) Done() <-chan struct{} { return h.done }

// Waiters returns the number of callers that joined this reservation
func (h *Handle) Waiters() int { return int(atomic.LoadInt32(&h.waiters)) }

// Result returns the outcome; valid only after Done is closed.
func (h *Handle) Result() (*output.Descriptor, *types.ErrorRecord) {
	return h.descriptor, h.failure
}

// Wait blocks until the reservation resolves or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*output.Descriptor, error) {
	select {
	case <-h.done:
		if h.failure != nil {
			return nil, h.failure
		}
		return h.descriptor, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) join() {
	atomic.AddInt32(&h.waiters, 1)
}

// resolve must be called exactly once, under the owning shard lock.
func (h *Handle) resolve(descriptor *output.Descriptor, failure *types.ErrorRecord) {
	h.descriptor = descriptor
	h.failure = failure
	close(h.done)
}
