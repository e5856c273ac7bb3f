package worker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viant/geoflow/model/graph"
)

// Registry holds operations keyed by name@version
type Registry struct {
	mux        sync.RWMutex
	operations map[string]Operation
}

func key(name, version string) string {
	if version == "" {
		version = graph.DefaultVersion
	}
	return name + "@" + version
}

// Register adds an operation; registering the same key twice is an error
func (r *Registry) Register(name, version string, operation Operation) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	k := key(name, version)
	if _, ok := r.operations[k]; ok {
		return fmt.Errorf("operation %v already registered", k)
	}
	r.operations[k] = operation
	return nil
}

// Lookup returns the operation for name and version
func (r *Registry) Lookup(name, version string) (Operation, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	ret, ok := r.operations[key(name, version)]
	return ret, ok
}

// Keys returns registered name@version keys
func (r *Registry) Keys() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	ret := make([]string, 0, len(r.operations))
	for k := range r.operations {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// NewRegistry creates a registry with built-in operations
func NewRegistry() *Registry {
	ret := &Registry{operations: map[string]Operation{}}
	_ = ret.Register(ShellOperation, "1", Typed(shell))
	return ret
}
