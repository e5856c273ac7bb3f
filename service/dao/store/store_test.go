package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/dao/criteria"
)

type record struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Tags      []string  `json:"tags,omitempty"`
}

func keyOf(r *record) string { return r.ID }

func recordOf(r *record) criteria.Record {
	return criteria.Record{ID: r.ID, Status: r.Status, CreatedAt: r.CreatedAt}
}

func cloneOf(r *record) *record {
	ret := *r
	ret.Tags = append([]string(nil), r.Tags...)
	return &ret
}

func TestStores(t *testing.T) {
	fsStore, err := NewFsStore[record](afs.New(), t.TempDir(), keyOf, recordOf)
	require.NoError(t, err)
	var testCases = []struct {
		description string
		store       dao.Service[string, record]
	}{
		{description: "memory", store: NewMemoryStore[string, record](keyOf, recordOf, cloneOf)},
		{description: "fs", store: fsStore},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			ctx := context.Background()
			store := testCase.store
			now := time.Now().UTC()
			assert.NoError(t, store.Save(ctx, &record{ID: "r1", Status: "running", CreatedAt: now.Add(-time.Hour), Tags: []string{"a"}}))
			assert.NoError(t, store.Save(ctx, &record{ID: "r2", Status: "failed", CreatedAt: now}))
			assert.ErrorIs(t, store.Save(ctx, nil), dao.ErrNilEntity)
			assert.ErrorIs(t, store.Save(ctx, &record{}), dao.ErrInvalidID)

			loaded, err := store.Load(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, "running", loaded.Status)
			loaded.Tags[0] = "changed"
			again, _ := store.Load(ctx, "r1")
			assert.Equal(t, "a", again.Tags[0])

			_, err = store.Load(ctx, "missing")
			assert.ErrorIs(t, err, dao.ErrNotFound)

			items, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, items, 2)
			items, err = store.List(ctx, dao.NewParameter(dao.ParamStatus, "failed"))
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "r2", items[0].ID)
			items, err = store.List(ctx, dao.OlderThan(now.Add(-time.Minute)))
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "r1", items[0].ID)

			assert.NoError(t, store.Delete(ctx, "r1"))
			assert.ErrorIs(t, store.Delete(ctx, "r1"), dao.ErrNotFound)
		})
	}
}
