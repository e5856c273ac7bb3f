package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/geoflow/internal/clock"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/dao/criteria"
	"github.com/viant/geoflow/service/dao/store"
)

func newStore() dao.Service[string, output.Entry] {
	return store.NewMemoryStore[string, output.Entry](
		func(e *output.Entry) string { return e.Fingerprint },
		func(e *output.Entry) criteria.Record { return criteria.Record{ID: e.Fingerprint, CreatedAt: e.CreatedAt} },
		nil)
}

func TestService_LookupOrReserve_Concurrent(t *testing.T) {
	const callers = 64
	cache := New(newStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan *Lookup, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			lookup, err := cache.LookupOrReserve(ctx, "fp-1")
			assert.NoError(t, err)
			results <- lookup
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	counts := map[Status]int{}
	var handle *Handle
	for lookup := range results {
		counts[lookup.Status]++
		if handle == nil {
			handle = lookup.Handle
		}
		assert.Same(t, handle, lookup.Handle)
	}
	assert.Equal(t, 1, counts[StatusReserved])
	assert.Equal(t, callers-1, counts[StatusWait])
	assert.Equal(t, callers-1, handle.Waiters())
	assert.Equal(t, 1, cache.Stats().InFlight)

	descriptor := &output.Descriptor{Operation: "compute_index", Version: "1", Outputs: map[string]interface{}{"index": "a1"}}
	require.NoError(t, cache.Complete(ctx, "fp-1", descriptor))
	actual, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, descriptor, actual)
	assert.Equal(t, "fp-1", actual.Fingerprint)
	assert.Equal(t, 0, cache.Stats().InFlight)
}

func TestService_Complete(t *testing.T) {
	ctx := context.Background()
	cache := New(newStore())
	descriptor := &output.Descriptor{Operation: "op", Version: "1"}

	lookup, err := cache.LookupOrReserve(ctx, "fp")
	require.NoError(t, err)
	require.Equal(t, StatusReserved, lookup.Status)
	require.NoError(t, cache.Complete(ctx, "fp", descriptor))

	for i := 0; i < 3; i++ {
		lookup, err = cache.LookupOrReserve(ctx, "fp")
		require.NoError(t, err)
		assert.Equal(t, StatusHit, lookup.Status)
		assert.Equal(t, descriptor, lookup.Descriptor)
	}

	err = cache.Complete(ctx, "fp", descriptor)
	var double *types.DoubleCompletionError
	assert.True(t, errors.As(err, &double))

	err = cache.Complete(ctx, "never-reserved", descriptor)
	assert.ErrorIs(t, err, types.ErrNotReserved)
	assert.EqualValues(t, 3, cache.Stats().Hits)
}

func TestService_Fail(t *testing.T) {
	ctx := context.Background()
	cache := New(newStore())

	reserved, err := cache.LookupOrReserve(ctx, "fp")
	require.NoError(t, err)
	waiting, err := cache.LookupOrReserve(ctx, "fp")
	require.NoError(t, err)
	require.Equal(t, StatusWait, waiting.Status)

	record := &types.ErrorRecord{Kind: types.ErrorKindOperation, Message: "no bands"}
	require.NoError(t, cache.Fail(ctx, "fp", record))

	_, err = waiting.Handle.Wait(ctx)
	assert.Equal(t, record, err)
	_, failure := reserved.Handle.Result()
	assert.Equal(t, record, failure)

	again, err := cache.LookupOrReserve(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, again.Status)
	assert.NotSame(t, reserved.Handle, again.Handle)
	assert.ErrorIs(t, cache.Fail(ctx, "other", record), types.ErrNotReserved)
}

func TestService_Wait_Cancelled(t *testing.T) {
	cache := New(newStore())
	_, err := cache.LookupOrReserve(context.Background(), "fp")
	require.NoError(t, err)
	waiting, err := cache.LookupOrReserve(context.Background(), "fp")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = waiting.Handle.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stubVerifier struct {
	missing map[string]bool
}

func (v *stubVerifier) Exists(_ context.Context, asset *output.Asset) (bool, error) {
	return !v.missing[asset.ID], nil
}

func TestService_Retention(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return now }
	defer func() { clock.NowFunc = time.Now }()

	ctx := context.Background()
	t.Run("ttl", func(t *testing.T) {
		cache := New(newStore(), WithTTL(time.Hour))
		_, _ = cache.LookupOrReserve(ctx, "fp")
		require.NoError(t, cache.Complete(ctx, "fp", &output.Descriptor{}))

		now = now.Add(30 * time.Minute)
		lookup, _ := cache.LookupOrReserve(ctx, "fp")
		assert.Equal(t, StatusHit, lookup.Status)

		now = now.Add(time.Hour)
		lookup, _ = cache.LookupOrReserve(ctx, "fp")
		assert.Equal(t, StatusReserved, lookup.Status)
		assert.EqualValues(t, 1, cache.Stats().Evictions)
	})

	t.Run("missing asset", func(t *testing.T) {
		verifier := &stubVerifier{missing: map[string]bool{}}
		cache := New(newStore(), WithAssetVerifier(verifier))
		_, _ = cache.LookupOrReserve(ctx, "fp")
		require.NoError(t, cache.Complete(ctx, "fp", &output.Descriptor{Assets: []*output.Asset{{ID: "raster-1"}}}))

		lookup, _ := cache.LookupOrReserve(ctx, "fp")
		assert.Equal(t, StatusHit, lookup.Status)

		verifier.missing["raster-1"] = true
		lookup, _ = cache.LookupOrReserve(ctx, "fp")
		assert.Equal(t, StatusReserved, lookup.Status)
	})

	t.Run("purge", func(t *testing.T) {
		cache := New(newStore(), WithShards(4))
		for _, fp := range []string{"a", "b"} {
			_, _ = cache.LookupOrReserve(ctx, fp)
			require.NoError(t, cache.Complete(ctx, fp, &output.Descriptor{}))
		}
		now = now.Add(time.Hour)
		_, _ = cache.LookupOrReserve(ctx, "c")
		require.NoError(t, cache.Complete(ctx, "c", &output.Descriptor{}))

		count, err := cache.Purge(ctx, now.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		lookup, _ := cache.LookupOrReserve(ctx, "c")
		assert.Equal(t, StatusHit, lookup.Status)
		lookup, _ = cache.LookupOrReserve(ctx, "a")
		assert.Equal(t, StatusReserved, lookup.Status)
	})
}
