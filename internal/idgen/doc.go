// Package idgen wraps identifier generators so that they can be stubbed in
// tests. Run identifiers are UUIDs, dispatch attempts use lexically sortable
// ULIDs. Callers should treat both as opaque strings.
package idgen
