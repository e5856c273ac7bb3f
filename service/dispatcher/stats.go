package dispatcher

import "sync/atomic"

// Stats reports dispatcher counters
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Attempts   int64 `json:"attempts"`
	Retries    int64 `json:"retries"`
	Timeouts   int64 `json:"timeouts"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Duplicates int64 `json:"duplicates"`
	Unknown    int64 `json:"unknown"`
	Inflight   int64 `json:"inflight"`
	Pending    int   `json:"pending"`
}

type counters struct {
	dispatched atomic.Int64
	attempts   atomic.Int64
	retries    atomic.Int64
	timeouts   atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
	unknown    atomic.Int64
	inflight   atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Dispatched: c.dispatched.Load(),
		Attempts:   c.attempts.Load(),
		Retries:    c.retries.Load(),
		Timeouts:   c.timeouts.Load(),
		Succeeded:  c.succeeded.Load(),
		Failed:     c.failed.Load(),
		Duplicates: c.duplicates.Load(),
		Unknown:    c.unknown.Load(),
		Inflight:   c.inflight.Load(),
	}
}
