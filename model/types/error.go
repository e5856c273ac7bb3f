package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure for propagation and retry decisions.
type ErrorKind string

const (
	ErrorKindDefinition ErrorKind = "definition"
	ErrorKindTransport  ErrorKind = "transport"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindOperation  ErrorKind = "operation"
	ErrorKindCache      ErrorKind = "cache"
	ErrorKindCancelled  ErrorKind = "cancelled"
)

// ErrorRecord is the serialisable form of a failure attached to tasks, runs and cache entries.
type ErrorRecord struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
	TaskID  string    `json:"taskId,omitempty" yaml:"taskId,omitempty"`
}

func (r *ErrorRecord) Error() string {
	if r.TaskID != "" {
		return fmt.Sprintf("%s: task %s: %s", r.Kind, r.TaskID, r.Message)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// Err converts the record back into a typed error.
func (r *ErrorRecord) Err() error {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case ErrorKindDefinition:
		return &DefinitionError{Msg: r.Message}
	case ErrorKindTransport:
		return &TransportError{Err: errors.New(r.Message)}
	case ErrorKindTimeout:
		return &TimeoutError{Msg: r.Message}
	case ErrorKindOperation:
		return &OperationError{Message: r.Message}
	}
	return r
}

// WithTask returns a copy of the record attributed to taskID.
func (r *ErrorRecord) WithTask(taskID string) *ErrorRecord {
	if r == nil {
		return nil
	}
	ret := *r
	ret.TaskID = taskID
	return &ret
}

// DefinitionError reports a malformed, cyclic or unresolvable workflow.
type DefinitionError struct {
	Ref string
	Msg string
}

func (e *DefinitionError) Error() string {
	if e.Ref == "" {
		return "definition: " + e.Msg
	}
	return fmt.Sprintf("definition: %s: %s", e.Ref, e.Msg)
}

// NewDefinitionError creates a definition error for the offending reference.
func NewDefinitionError(ref string, format string, args ...interface{}) error {
	return &DefinitionError{Ref: ref, Msg: fmt.Sprintf(format, args...)}
}

// TransportError wraps an infrastructure failure of the worker channel.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports a request outstanding longer than the configured ceiling.
type TimeoutError struct {
	CorrelationID string
	After         time.Duration
	Msg           string
}

func (e *TimeoutError) Error() string {
	if e.Msg != "" {
		return "timeout: " + e.Msg
	}
	return fmt.Sprintf("timeout: request %s outstanding for more than %s", e.CorrelationID, e.After)
}

// OperationError is a domain failure raised by the operation itself.
type OperationError struct {
	Operation string
	Message   string
}

func (e *OperationError) Error() string {
	if e.Operation == "" {
		return "operation: " + e.Message
	}
	return fmt.Sprintf("operation %s: %s", e.Operation, e.Message)
}

// DoubleCompletionError reports a second completion of the same fingerprint.
type DoubleCompletionError struct {
	Fingerprint string
}

func (e *DoubleCompletionError) Error() string {
	return fmt.Sprintf("cache: fingerprint %s already completed", e.Fingerprint)
}

// ErrNotReserved is returned when complete/fail is called without a reservation.
var ErrNotReserved = errors.New("cache: fingerprint not reserved")

// IsRetryable reports whether err is an infrastructure failure.
func IsRetryable(err error) bool {
	var transport *TransportError
	var timeout *TimeoutError
	return errors.As(err, &transport) || errors.As(err, &timeout)
}

// RecordOf classifies err into an ErrorRecord.
func RecordOf(err error) *ErrorRecord {
	if err == nil {
		return nil
	}
	var record *ErrorRecord
	if errors.As(err, &record) {
		return record
	}
	var definition *DefinitionError
	var transport *TransportError
	var timeout *TimeoutError
	var operation *OperationError
	var double *DoubleCompletionError
	kind := ErrorKindOperation
	switch {
	case errors.As(err, &definition):
		kind = ErrorKindDefinition
	case errors.As(err, &timeout):
		kind = ErrorKindTimeout
	case errors.As(err, &transport):
		kind = ErrorKindTransport
	case errors.As(err, &double), errors.Is(err, ErrNotReserved):
		kind = ErrorKindCache
	case errors.Is(err, context.Canceled):
		kind = ErrorKindCancelled
	case errors.As(err, &operation):
		return &ErrorRecord{Kind: kind, Message: operation.Message}
	}
	return &ErrorRecord{Kind: kind, Message: err.Error()}
}
