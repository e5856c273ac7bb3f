package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Update(t *testing.T) {
	var observed []Counters
	tracker := New("run-1", "ndvi", 3, func(c Counters) { observed = append(observed, c) })

	tracker.Update(Transition("pending", "ready"))
	tracker.Update(Transition("ready", "succeeded"))
	hit := Transition("pending", "cancelled")
	hit.CacheHits = 1
	tracker.Update(hit)

	snapshot := tracker.Snapshot()
	assert.Equal(t, Counters{Total: 3, Pending: 1, Succeeded: 1, Cancelled: 1, CacheHits: 1}, snapshot)
	assert.Len(t, observed, 3)
}

func TestProgress_Concurrent(t *testing.T) {
	tracker := New("run-1", "ndvi", 100, nil)
	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Update(Transition("pending", "running"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, tracker.Snapshot().Running)
	assert.Equal(t, 0, tracker.Snapshot().Pending)

	var nilTracker *Progress
	nilTracker.Update(Delta{Total: 1})
	assert.Equal(t, Counters{}, nilTracker.Snapshot())
}
