package criteria

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/geoflow/service/dao"
)

func TestMatches(t *testing.T) {
	now := time.Now()
	record := Record{ID: "r1", Status: "running", CreatedAt: now.Add(-time.Hour)}
	var testCases = []struct {
		description string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", expect: true},
		{description: "status match", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamStatus, "running")}, expect: true},
		{description: "status mismatch", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamStatus, "failed")}},
		{description: "any status", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamStatus, "failed", "running")}, expect: true},
		{description: "ids mismatch", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamIDs, "r2", "r3")}},
		{description: "older than", parameters: []*dao.Parameter{dao.OlderThan(now)}, expect: true},
		{description: "not older than", parameters: []*dao.Parameter{dao.OlderThan(now.Add(-2 * time.Hour))}},
		{description: "combined", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamIDs, "r1", "r2"), dao.NewParameter(dao.ParamStatus, "failed")}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, Matches(record, testCase.parameters))
		})
	}
}
