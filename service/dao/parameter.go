package dao

import "time"

// Well known List parameter names
const (
	ParamStatus    = "Status"
	ParamIDs       = "IDs"
	ParamOlderThan = "OlderThan"
)

type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// OlderThan selects records created before the supplied time
func OlderThan(t time.Time) *Parameter {
	return &Parameter{Name: ParamOlderThan, Value: t}
}
