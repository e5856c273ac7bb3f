package idgen

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewFunc returns a new run identifier.
var NewFunc = func() string { return uuid.New().String() }

// NewAttemptFunc returns a new, time ordered attempt identifier.
var NewAttemptFunc = func() string { return ulid.Make().String() }

func New() string { return NewFunc() }

func NewAttempt() string { return NewAttemptFunc() }
