package execution

import "fmt"

// TaskState represents the current state of a task within a run
type TaskState string

const (
	TaskStatePending    TaskState = "pending"
	TaskStateReady      TaskState = "ready"
	TaskStateDispatched TaskState = "dispatched"
	TaskStateRunning    TaskState = "running"
	TaskStateSucceeded  TaskState = "succeeded"
	TaskStateFailed     TaskState = "failed"
	TaskStateCancelled  TaskState = "cancelled"
)

var taskTransitions = map[TaskState][]TaskState{
	TaskStatePending:    {TaskStateReady, TaskStateCancelled},
	TaskStateReady:      {TaskStateDispatched, TaskStateSucceeded, TaskStateFailed, TaskStateCancelled},
	TaskStateDispatched: {TaskStateRunning, TaskStateSucceeded, TaskStateFailed, TaskStateCancelled},
	TaskStateRunning:    {TaskStateSucceeded, TaskStateFailed, TaskStateCancelled},
}

// IsTerminal returns true for succeeded, failed and cancelled
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed || s == TaskStateCancelled
}

// CanTransition reports whether the state machine allows s -> to
func (s TaskState) CanTransition(to TaskState) bool {
	for _, candidate := range taskTransitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// RunStatus represents the aggregate status of a run
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusRunning    RunStatus = "running"
	RunStatusSucceeded  RunStatus = "succeeded"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelling RunStatus = "cancelling"
	RunStatusCancelled  RunStatus = "cancelled"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCancelled
}

// ParseRunStatus validates a textual status
func ParseRunStatus(text string) (RunStatus, error) {
	switch status := RunStatus(text); status {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusCancelling, RunStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("unsupported run status: %s", text)
}
