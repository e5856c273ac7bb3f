package execution

import (
	"fmt"
	"time"

	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/types"
)

// Details records lifecycle timestamps and the reason of the last status change.
type Details struct {
	SubmittedAt time.Time  `json:"submittedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// TaskExecution is the live state of one task node within a run.
type TaskExecution struct {
	TaskID      string    `json:"taskId"`
	Operation   string    `json:"op"`
	Version     string    `json:"opVersion"`
	State       TaskState `json:"state"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	// Cached is set when the result came from the cache without dispatching.
	Cached bool `json:"cached,omitempty"`
	// Shared is set when the task joined an execution reserved by another caller.
	Shared   bool               `json:"shared,omitempty"`
	Attempts int                `json:"attempts,omitempty"`
	Output   *output.Descriptor `json:"output,omitempty"`
	Error    *types.ErrorRecord `json:"error,omitempty"`
	Details  Details            `json:"details"`
}

// Transition moves the task to the next state, stamping lifecycle details.
func (t *TaskExecution) Transition(to TaskState, now time.Time, reason string) error {
	if !t.State.CanTransition(to) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", t.TaskID, t.State, to)
	}
	t.State = to
	switch {
	case to == TaskStateDispatched || to == TaskStateRunning:
		if t.Details.StartedAt == nil {
			t.Details.StartedAt = &now
		}
	case to.IsTerminal():
		t.Details.EndedAt = &now
	}
	if reason != "" {
		t.Details.Reason = reason
	}
	return nil
}

// Clone returns a copy safe to hand outside the owning scheduler.
func (t *TaskExecution) Clone() *TaskExecution {
	ret := *t
	if t.Error != nil {
		record := *t.Error
		ret.Error = &record
	}
	return &ret
}
