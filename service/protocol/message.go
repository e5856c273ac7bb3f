// Package protocol defines the messages exchanged between the dispatcher and workers.
package protocol

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/geoflow/internal/clock"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/types"
)

// ResponseType discriminates worker responses
type ResponseType string

const (
	ResponseAck     ResponseType = "ack"
	ResponseSuccess ResponseType = "success"
	ResponseFailure ResponseType = "failure"
)

// Request asks a worker to execute one operation invocation
type Request struct {
	RunID         string                 `json:"runId"`
	TaskID        string                 `json:"taskId"`
	CorrelationID string                 `json:"correlationId"`
	AttemptID     string                 `json:"attemptId"`
	Attempt       int                    `json:"attempt"`
	Operation     string                 `json:"op"`
	Version       string                 `json:"opVersion"`
	Fingerprint   string                 `json:"fingerprint"`
	Inputs        map[string]interface{} `json:"inputs,omitempty"`
	IssuedAt      time.Time              `json:"issuedAt"`
}

// OperationKey returns name@version
func (r *Request) OperationKey() string {
	return r.Operation + "@" + r.Version
}

// Response reports progress or the terminal outcome of a request
type Response struct {
	CorrelationID string             `json:"correlationId"`
	AttemptID     string             `json:"attemptId,omitempty"`
	Type          ResponseType       `json:"type"`
	Descriptor    *output.Descriptor `json:"descriptor,omitempty"`
	Error         *types.ErrorRecord `json:"error,omitempty"`
	WorkerID      string             `json:"workerId,omitempty"`
	At            time.Time          `json:"at"`
}

// IsTerminal returns true for success and failure responses
func (r *Response) IsTerminal() bool {
	return r.Type == ResponseSuccess || r.Type == ResponseFailure
}

func NewAck(request *Request, workerID string) *Response {
	return &Response{CorrelationID: request.CorrelationID, AttemptID: request.AttemptID, Type: ResponseAck, WorkerID: workerID, At: clock.Now()}
}

func NewSuccess(request *Request, workerID string, descriptor *output.Descriptor) *Response {
	return &Response{CorrelationID: request.CorrelationID, AttemptID: request.AttemptID, Type: ResponseSuccess, Descriptor: descriptor, WorkerID: workerID, At: clock.Now()}
}

func NewFailure(request *Request, workerID string, record *types.ErrorRecord) *Response {
	return &Response{CorrelationID: request.CorrelationID, AttemptID: request.AttemptID, Type: ResponseFailure, Error: record, WorkerID: workerID, At: clock.Now()}
}

// CorrelationID returns the run scoped task identity
func CorrelationID(runID, taskID string) string {
	return runID + "/" + taskID
}

// ParseCorrelationID splits a correlation id; task ids may themselves contain '/'
func ParseCorrelationID(id string) (runID, taskID string, err error) {
	runID, taskID, ok := strings.Cut(id, "/")
	if !ok || runID == "" || taskID == "" {
		return "", "", fmt.Errorf("invalid correlation id %q", id)
	}
	return runID, taskID, nil
}
