package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"golang.org/x/crypto/blake2b"
)

const schemeVersion = "geoflow/fingerprint/v1"

// Input is one resolved input slot: either a literal or the identity of an upstream output.
type Input struct {
	Literal  interface{}
	Upstream string
	Port     string
}

// LiteralInput wraps a literal value
func LiteralInput(value interface{}) Input {
	return Input{Literal: value}
}

// UpstreamInput references the output port of the invocation identified by fingerprint
func UpstreamInput(fingerprint, port string) Input {
	return Input{Upstream: fingerprint, Port: port}
}

// IsUpstream returns true for upstream output references
func (i Input) IsUpstream() bool {
	return i.Upstream != ""
}

// Engine computes fingerprints
type Engine struct {
	namespace string
}

// Option configures an Engine
type Option func(e *Engine)

// WithNamespace mixes an environment key into every fingerprint; changing it invalidates all prior results.
func WithNamespace(namespace string) Option {
	return func(e *Engine) {
		e.namespace = namespace
	}
}

// New creates an engine
func New(opts ...Option) *Engine {
	ret := &Engine{}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Namespace returns the configured environment key
func (e *Engine) Namespace() string {
	return e.namespace
}

// Fingerprint returns the hex encoded BLAKE2b-256 digest of the invocation.
func (e *Engine) Fingerprint(operation, version string, inputs map[string]Input) (string, error) {
	if operation == "" {
		return "", fmt.Errorf("fingerprint: operation name is empty")
	}
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	writeField(hasher, []byte(schemeVersion))
	writeField(hasher, []byte(e.namespace))
	writeField(hasher, []byte(operation))
	writeField(hasher, []byte(version))

	slots := make([]string, 0, len(inputs))
	for slot := range inputs {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	writeCount(hasher, len(slots))
	for _, slot := range slots {
		input := inputs[slot]
		writeField(hasher, []byte(slot))
		if input.IsUpstream() {
			writeField(hasher, []byte{'u'})
			writeField(hasher, []byte(input.Upstream))
			writeField(hasher, []byte(input.Port))
			continue
		}
		encoded, err := Canonical(input.Literal)
		if err != nil {
			return "", fmt.Errorf("fingerprint: input %s: %w", slot, err)
		}
		writeField(hasher, []byte{'l'})
		writeField(hasher, encoded)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// writeField writes length-prefixed data so that adjacent fields cannot be confused.
func writeField(hasher hash.Hash, data []byte) {
	writeCount(hasher, len(data))
	hasher.Write(data)
}

func writeCount(hasher hash.Hash, n int) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(n))
	hasher.Write(prefix[:])
}
