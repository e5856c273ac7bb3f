package plan

import (
	"sort"

	"github.com/viant/geoflow/model/graph"
)

type (
	// Node is an immutable, resolved task bound to one operation invocation.
	Node struct {
		ID        string `json:"id"`
		Operation string `json:"op"`
		Version   string `json:"opVersion"`
		// Inputs holds output and source bindings keyed by input port.
		Inputs map[string]graph.Binding `json:"inputs,omitempty"`
		// Parameters holds literal and top-level parameter bindings.
		Parameters map[string]graph.Binding `json:"parameters,omitempty"`
		Upstream   []string                 `json:"upstream,omitempty"`
		Downstream []string                 `json:"downstream,omitempty"`
		Optional   bool                     `json:"optional,omitempty"`
		Volatile   []string                 `json:"volatile,omitempty"`
		Order      int                      `json:"order"`
	}

	// Plan is a flat, validated and topologically ordered task graph.
	Plan struct {
		Workflow   string                     `json:"workflow"`
		Nodes      map[string]*Node           `json:"nodes"`
		Order      []string                   `json:"order"`
		Sources    map[string][]graph.PortRef `json:"sources,omitempty"`
		Sinks      map[string]graph.PortRef   `json:"sinks,omitempty"`
		Parameters map[string]interface{}     `json:"parameters,omitempty"`
	}
)

// IsVolatile returns true if the slot is excluded from fingerprinting.
func (n *Node) IsVolatile(slot string) bool {
	for _, candidate := range n.Volatile {
		if candidate == slot {
			return true
		}
	}
	return false
}

// Node returns a node by id.
func (p *Plan) Node(id string) *Node {
	return p.Nodes[id]
}

// Ordered returns nodes in topological order.
func (p *Plan) Ordered() []*Node {
	result := make([]*Node, 0, len(p.Order))
	for _, id := range p.Order {
		result = append(result, p.Nodes[id])
	}
	return result
}

// Descendants returns every node transitively depending on id, in topological order.
func (p *Plan) Descendants(id string) []string {
	seen := map[string]bool{}
	var visit func(string)
	visit = func(current string) {
		node := p.Nodes[current]
		if node == nil {
			return
		}
		for _, next := range node.Downstream {
			if !seen[next] {
				seen[next] = true
				visit(next)
			}
		}
	}
	visit(id)
	var result []string
	for _, candidate := range p.Order {
		if seen[candidate] {
			result = append(result, candidate)
		}
	}
	return result
}

// SinkNames returns sink names in lexical order.
func (p *Plan) SinkNames() []string {
	names := make([]string, 0, len(p.Sinks))
	for name := range p.Sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
