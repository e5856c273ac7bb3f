// Package cache implements the result cache: a mapping from fingerprint to
// output descriptor with at-most-one-execution-in-flight coordination.
//
// LookupOrReserve hands out exactly one reservation per fingerprint while no
// completed entry exists; concurrent callers receive a shared Handle to wait
// on. Complete persists the descriptor and releases waiters, Fail releases
// waiters with an error record without persisting anything, so a later
// lookup reserves again.
//
// Retention: entries older than the configured TTL are misses and are
// removed on lookup; with asset verification enabled an entry whose assets
// disappeared from the asset store is evicted as well. Purge and Invalidate
// are explicit administrative evictions.
package cache
