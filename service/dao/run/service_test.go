package run

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/dao"
)

func TestRunDAO(t *testing.T) {
	fsDAO, err := NewFs(afs.New(), t.TempDir())
	require.NoError(t, err)
	for name, aDAO := range map[string]DAO{"memory": NewMemory(), "fs": fsDAO} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := &execution.Run{
				ID:       "run-1",
				Workflow: "ndvi",
				Status:   execution.RunStatusSucceeded,
				Details:  execution.Details{SubmittedAt: time.Now().UTC()},
				Tasks: map[string]*execution.TaskExecution{
					"a": {TaskID: "a", State: execution.TaskStateSucceeded},
				},
				Order: []string{"a"},
			}
			require.NoError(t, aDAO.Save(ctx, run))
			run.Tasks["a"].State = execution.TaskStateFailed

			loaded, err := aDAO.Load(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, execution.TaskStateSucceeded, loaded.Tasks["a"].State)

			runs, err := aDAO.List(ctx, dao.NewParameter(dao.ParamStatus, string(execution.RunStatusRunning)))
			require.NoError(t, err)
			assert.Empty(t, runs)
			runs, err = aDAO.List(ctx, dao.NewParameter(dao.ParamIDs, "run-1"))
			require.NoError(t, err)
			assert.Len(t, runs, 1)
		})
	}
}
