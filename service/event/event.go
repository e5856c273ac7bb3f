package event

import (
	"time"

	"github.com/viant/geoflow/internal/clock"
)

const (
	TypeTaskTransition = "task.transition"
	TypeRunStatus      = "run.status"
)

// Context identifies where an event originated
type Context struct {
	RunID       string `json:"runID"`
	TaskID      string `json:"taskID,omitempty"`
	Workflow    string `json:"workflow,omitempty"`
	EventType   string `json:"eventType"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

// TaskTransition is published whenever a task execution changes state
type TaskTransition struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Reason      string `json:"reason,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Cached      bool   `json:"cached,omitempty"`
	Shared      bool   `json:"shared,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
}

// RunStatus is published whenever a run changes status
type RunStatus struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
