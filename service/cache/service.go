package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/geoflow/internal/clock"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/tracing"
)

// Status is the outcome of LookupOrReserve
type Status int

const (
	StatusHit Status = iota + 1
	StatusReserved
	StatusWait
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "HIT"
	case StatusReserved:
		return "RESERVED"
	case StatusWait:
		return "WAIT"
	}
	return "UNKNOWN"
}

// Lookup carries the descriptor for HIT and the shared handle for RESERVED and WAIT
type Lookup struct {
	Status     Status
	Descriptor *output.Descriptor
	Handle     *Handle
}

// AssetVerifier checks that assets referenced by a cached descriptor still exist
type AssetVerifier interface {
	Exists(ctx context.Context, asset *output.Asset) (bool, error)
}

// Stats reports cache activity counters
type Stats struct {
	Hits         int64 `json:"hits"`
	Reservations int64 `json:"reservations"`
	Waits        int64 `json:"waits"`
	Completions  int64 `json:"completions"`
	Failures     int64 `json:"failures"`
	Evictions    int64 `json:"evictions"`
	InFlight     int   `json:"inFlight"`
}

type shard struct {
	mu       sync.Mutex
	inflight map[string]*Handle
}

// Service is the result cache
type Service struct {
	store    dao.Service[string, output.Entry]
	ttl      time.Duration
	verifier AssetVerifier
	shards   []*shard

	hits, reservations, waits, completions, failures, evictions int64
}

// New creates a cache over the supplied entry store
func New(store dao.Service[string, output.Entry], opts ...Option) *Service {
	ret := &Service{store: store}
	shards := defaultShards
	for _, opt := range opts {
		opt(ret)
	}
	if len(ret.shards) > 0 {
		shards = len(ret.shards)
	}
	ret.shards = make([]*shard, shards)
	for i := range ret.shards {
		ret.shards[i] = &shard{inflight: map[string]*Handle{}}
	}
	return ret
}

const defaultShards = 64

func (s *Service) shardOf(fingerprint string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fingerprint))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// LookupOrReserve returns HIT with a completed descriptor, RESERVED for the
// single caller that must produce the result, or WAIT with the shared handle.
func (s *Service) LookupOrReserve(ctx context.Context, fingerprint string) (lookup *Lookup, err error) {
	ctx, span := tracing.StartSpan(ctx, "cache.LookupOrReserve", tracing.KindInternal)
	defer func() {
		if lookup != nil {
			span.WithAttributes(map[string]string{tracing.AttrFingerprint: fingerprint, "cache.status": lookup.Status.String()})
		}
		tracing.EndSpan(span, err)
	}()
	if fingerprint == "" {
		return nil, dao.ErrInvalidID
	}
	sh := s.shardOf(fingerprint)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if handle, ok := sh.inflight[fingerprint]; ok {
		handle.join()
		atomic.AddInt64(&s.waits, 1)
		return &Lookup{Status: StatusWait, Handle: handle}, nil
	}
	entry, err := s.store.Load(ctx, fingerprint)
	switch {
	case err == nil:
		if s.isValid(ctx, entry) {
			atomic.AddInt64(&s.hits, 1)
			return &Lookup{Status: StatusHit, Descriptor: entry.Descriptor}, nil
		}
		s.evict(ctx, fingerprint)
	case errors.Is(err, dao.ErrNotFound):
	default:
		return nil, fmt.Errorf("cache: lookup %s: %w", fingerprint, err)
	}
	handle := newHandle(fingerprint)
	sh.inflight[fingerprint] = handle
	atomic.AddInt64(&s.reservations, 1)
	return &Lookup{Status: StatusReserved, Handle: handle}, nil
}

// Complete commits the descriptor for a reserved fingerprint and releases all waiters.
func (s *Service) Complete(ctx context.Context, fingerprint string, descriptor *output.Descriptor) error {
	sh := s.shardOf(fingerprint)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	handle, ok := sh.inflight[fingerprint]
	if !ok {
		if _, err := s.store.Load(ctx, fingerprint); err == nil {
			return &types.DoubleCompletionError{Fingerprint: fingerprint}
		}
		return fmt.Errorf("complete %s: %w", fingerprint, types.ErrNotReserved)
	}
	delete(sh.inflight, fingerprint)
	if descriptor == nil {
		descriptor = &output.Descriptor{}
	}
	if descriptor.Fingerprint == "" {
		descriptor.Fingerprint = fingerprint
	}
	entry := &output.Entry{Fingerprint: fingerprint, Descriptor: descriptor, CreatedAt: clock.Now()}
	if err := s.store.Save(ctx, entry); err != nil {
		atomic.AddInt64(&s.failures, 1)
		handle.resolve(nil, &types.ErrorRecord{Kind: types.ErrorKindCache, Message: err.Error()})
		return fmt.Errorf("cache: save %s: %w", fingerprint, err)
	}
	atomic.AddInt64(&s.completions, 1)
	handle.resolve(descriptor, nil)
	return nil
}

// Fail releases waiters with the error record. Nothing is persisted, so the next lookup reserves again.
func (s *Service) Fail(_ context.Context, fingerprint string, record *types.ErrorRecord) error {
	sh := s.shardOf(fingerprint)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	handle, ok := sh.inflight[fingerprint]
	if !ok {
		return fmt.Errorf("fail %s: %w", fingerprint, types.ErrNotReserved)
	}
	delete(sh.inflight, fingerprint)
	if record == nil {
		record = &types.ErrorRecord{Kind: types.ErrorKindOperation, Message: "unknown failure"}
	}
	atomic.AddInt64(&s.failures, 1)
	handle.resolve(nil, record)
	return nil
}

// Invalidate removes a completed entry.
func (s *Service) Invalidate(ctx context.Context, fingerprint string) error {
	sh := s.shardOf(fingerprint)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if err := s.store.Delete(ctx, fingerprint); err != nil {
		return err
	}
	atomic.AddInt64(&s.evictions, 1)
	return nil
}

// Purge removes completed entries created before olderThan and returns their count.
func (s *Service) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	entries, err := s.store.List(ctx, dao.OlderThan(olderThan))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		err := s.Invalidate(ctx, entry.Fingerprint)
		switch {
		case err == nil:
			count++
		case errors.Is(err, dao.ErrNotFound):
		default:
			return count, err
		}
	}
	return count, nil
}

// Stats returns a snapshot of counters
func (s *Service) Stats() Stats {
	ret := Stats{
		Hits:         atomic.LoadInt64(&s.hits),
		Reservations: atomic.LoadInt64(&s.reservations),
		Waits:        atomic.LoadInt64(&s.waits),
		Completions:  atomic.LoadInt64(&s.completions),
		Failures:     atomic.LoadInt64(&s.failures),
		Evictions:    atomic.LoadInt64(&s.evictions),
	}
	for _, sh := range s.shards {
		sh.mu.Lock()
		ret.InFlight += len(sh.inflight)
		sh.mu.Unlock()
	}
	return ret
}

func (s *Service) isValid(ctx context.Context, entry *output.Entry) bool {
	if entry.Expired(clock.Now(), s.ttl) {
		return false
	}
	if s.verifier == nil || entry.Descriptor == nil {
		return true
	}
	for _, asset := range entry.Descriptor.Assets {
		exists, err := s.verifier.Exists(ctx, asset)
		if err != nil {
			log.Printf("cache: asset %s verification failed: %v", asset.ID, err)
			return false
		}
		if !exists {
			return false
		}
	}
	return true
}

func (s *Service) evict(ctx context.Context, fingerprint string) {
	if err := s.store.Delete(ctx, fingerprint); err != nil && !errors.Is(err, dao.ErrNotFound) {
		log.Printf("cache: failed to evict %s: %v", fingerprint, err)
		return
	}
	atomic.AddInt64(&s.evictions, 1)
}
