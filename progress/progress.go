package progress

import (
	"sync"
	"time"
)

// Counters holds task counts per state for a single run.
type Counters struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Ready      int `json:"ready"`
	Dispatched int `json:"dispatched"`
	Running    int `json:"running"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	CacheHits  int `json:"cacheHits"`
}

// Delta represents an incremental counter change. Fields are signed.
type Delta Counters

// Transition returns a delta moving one task from one state to another.
func Transition(from, to string) Delta {
	d := Delta{}
	d.add(from, -1)
	d.add(to, 1)
	return d
}

func (d *Delta) add(state string, n int) {
	switch state {
	case "pending":
		d.Pending += n
	case "ready":
		d.Ready += n
	case "dispatched":
		d.Dispatched += n
	case "running":
		d.Running += n
	case "succeeded":
		d.Succeeded += n
	case "failed":
		d.Failed += n
	case "cancelled":
		d.Cancelled += n
	}
}

// Progress keeps aggregated task counters for a run. It is safe for concurrent use.
type Progress struct {
	RunID     string
	Workflow  string
	StartedAt time.Time

	mu       sync.Mutex
	counters Counters
	onChange func(Counters)
}

// New creates a tracker with total tasks all pending.
func New(runID, workflow string, total int, onChange func(Counters)) *Progress {
	return &Progress{
		RunID:     runID,
		Workflow:  workflow,
		StartedAt: time.Now(),
		counters:  Counters{Total: total, Pending: total},
		onChange:  onChange,
	}
}

// Update applies the supplied delta. The onChange callback runs outside the
// critical section with a copy of the updated counters.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.counters.Total += d.Total
	p.counters.Pending += d.Pending
	p.counters.Ready += d.Ready
	p.counters.Dispatched += d.Dispatched
	p.counters.Running += d.Running
	p.counters.Succeeded += d.Succeeded
	p.counters.Failed += d.Failed
	p.counters.Cancelled += d.Cancelled
	p.counters.CacheHits += d.CacheHits
	snapshot := p.counters
	cb := p.onChange
	p.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Counters {
	if p == nil {
		return Counters{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// OnChange registers a callback invoked after every Update. Passing nil disables it.
func (p *Progress) OnChange(cb func(Counters)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}
