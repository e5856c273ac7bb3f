package criteria

import (
	"time"

	"github.com/viant/geoflow/service/dao"
)

// Record exposes the attributes List parameters can filter on.
type Record struct {
	ID        string
	Status    string
	CreatedAt time.Time
}

// Matches returns true when the record satisfies every parameter; unknown parameters are ignored.
func Matches(record Record, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		switch parameter.Name {
		case dao.ParamStatus:
			if !matchesAny(record.Status, parameter.Value) {
				return false
			}
		case dao.ParamIDs:
			if !matchesAny(record.ID, parameter.Value) {
				return false
			}
		case dao.ParamOlderThan:
			if limit, ok := parameter.Value.(time.Time); ok && !record.CreatedAt.Before(limit) {
				return false
			}
		}
	}
	return true
}

func matchesAny(value string, candidates interface{}) bool {
	switch actual := candidates.(type) {
	case string:
		return actual == "" || value == actual
	case []string:
		if len(actual) == 0 {
			return true
		}
		for _, candidate := range actual {
			if value == candidate {
				return true
			}
		}
		return false
	}
	return true
}
