package output

import "time"

type (
	// Asset references externally stored bytes by an opaque identifier.
	Asset struct {
		ID   string `json:"id"`
		URL  string `json:"url,omitempty"`
		Type string `json:"type,omitempty"`
		Size int64  `json:"size,omitempty"`
	}

	// Descriptor is the cacheable result of one successful operation invocation.
	// It is immutable once written to the cache.
	Descriptor struct {
		Fingerprint string `json:"fingerprint"`
		Operation   string `json:"op"`
		Version     string `json:"opVersion"`
		// Outputs holds structured metadata keyed by output port.
		Outputs   map[string]interface{} `json:"outputs,omitempty"`
		Assets    []*Asset               `json:"assets,omitempty"`
		CreatedAt time.Time              `json:"createdAt"`
	}
)

// Port returns the value of the named output port.
func (d *Descriptor) Port(name string) (interface{}, bool) {
	if d == nil || d.Outputs == nil {
		return nil, false
	}
	value, ok := d.Outputs[name]
	return value, ok
}

// Entry is a completed cache record keyed by fingerprint.
type Entry struct {
	Fingerprint string      `json:"fingerprint"`
	Descriptor  *Descriptor `json:"descriptor"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Expired returns true when the entry is older than ttl; zero ttl never expires.
func (e *Entry) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.CreatedAt) > ttl
}
