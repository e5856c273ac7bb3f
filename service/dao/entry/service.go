// Package entry provides persistence for completed result cache entries.
package entry

import (
	"github.com/viant/afs"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/dao/criteria"
	"github.com/viant/geoflow/service/dao/store"
)

// DAO persists cache entries keyed by fingerprint
type DAO = dao.Service[string, output.Entry]

func keyOf(e *output.Entry) string { return e.Fingerprint }

// RecordOf exposes entries to List criteria
func RecordOf(e *output.Entry) criteria.Record {
	return criteria.Record{ID: e.Fingerprint, CreatedAt: e.CreatedAt}
}

// NewMemory returns an in-memory entry DAO
func NewMemory() *store.MemoryStore[string, output.Entry] {
	return store.NewMemoryStore[string, output.Entry](keyOf, RecordOf, nil)
}

// NewFs returns an afs backed entry DAO
func NewFs(fs afs.Service, basePath string) (*store.FsStore[output.Entry], error) {
	return store.NewFsStore[output.Entry](fs, basePath, keyOf, RecordOf)
}
