// Package run provides persistence for run snapshots.
package run

import (
	"github.com/viant/afs"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/dao/criteria"
	"github.com/viant/geoflow/service/dao/store"
)

// DAO persists run snapshots keyed by run id
type DAO = dao.Service[string, execution.Run]

func keyOf(r *execution.Run) string { return r.ID }

func recordOf(r *execution.Run) criteria.Record {
	return criteria.Record{ID: r.ID, Status: string(r.Status), CreatedAt: r.Details.SubmittedAt}
}

// NewMemory returns an in-memory run DAO working on copies
func NewMemory() *store.MemoryStore[string, execution.Run] {
	return store.NewMemoryStore[string, execution.Run](keyOf, recordOf, (*execution.Run).Clone)
}

// NewFs returns an afs backed run DAO storing one JSON document per run
func NewFs(fs afs.Service, basePath string) (*store.FsStore[execution.Run], error) {
	return store.NewFsStore[execution.Run](fs, basePath, keyOf, recordOf)
}
