package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/graph"
	"github.com/viant/geoflow/model/plan"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/tracing"
)

// Separator joins a containing task name with nested task names
const Separator = "/"

// Lookup finds nested workflow definitions by name
type Lookup interface {
	Lookup(ctx context.Context, name string) (*model.Workflow, error)
}

// Service resolves workflow definitions into plans
type Service struct {
	lookup   Lookup
	maxDepth int
}

// scope is the external face of a flattened workflow: its sources and sinks mapped to node ports
type scope struct {
	inputs  map[string][]graph.PortRef
	outputs map[string]graph.PortRef
}

type session struct {
	ctx      context.Context
	service  *Service
	nodes    map[string]*plan.Node
	bindings map[graph.PortRef]graph.Binding
}

// Resolve flattens workflow into a plan or fails with a *types.DefinitionError
func (s *Service) Resolve(ctx context.Context, workflow *model.Workflow) (result *plan.Plan, err error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolve", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	if workflow == nil {
		return nil, types.NewDefinitionError("", "workflow is nil")
	}
	span.WithAttributes(map[string]string{tracing.AttrWorkflow: workflow.Name})

	sess := &session{ctx: ctx, service: s, nodes: map[string]*plan.Node{}, bindings: map[graph.PortRef]graph.Binding{}}
	params := map[string]graph.Binding{}
	for name := range workflow.Parameters {
		params[name] = graph.ParamRef(name)
	}
	top, err := sess.flatten(workflow, "", params, nil, inherited{})
	if err != nil {
		return nil, err
	}
	for port, binding := range sess.bindings {
		node := sess.nodes[port.Task]
		if _, ok := node.Parameters[port.Port]; ok {
			return nil, types.NewDefinitionError(port.String(), "port is bound both as an input and as a parameter")
		}
		if node.Inputs == nil {
			node.Inputs = map[string]graph.Binding{}
		}
		node.Inputs[port.Port] = binding
	}
	order, err := sortNodes(sess.nodes)
	if err != nil {
		return nil, err
	}
	result = &plan.Plan{
		Workflow:   workflow.Name,
		Nodes:      sess.nodes,
		Order:      order,
		Sources:    top.inputs,
		Sinks:      top.outputs,
		Parameters: workflow.Parameters,
	}
	return result, nil
}

// inherited carries containing-task attributes into nested nodes
type inherited struct {
	optional bool
	volatile []string
}

func (s *session) flatten(workflow *model.Workflow, prefix string, params map[string]graph.Binding, stack []string, from inherited) (*scope, error) {
	ref := strings.TrimSuffix(prefix, Separator)
	if ref == "" {
		ref = workflow.Name
	}
	if issues := workflow.Validate(); len(issues) > 0 {
		return nil, types.NewDefinitionError(ref, "%v", issues[0])
	}
	stack = append(stack, workflow.Name)
	children := map[string]*scope{}
	connected := map[string]map[string]bool{}

	for _, name := range workflow.TaskNames() {
		task := workflow.Tasks[name]
		id := prefix + name
		if strings.Contains(name, Separator) {
			return nil, types.NewDefinitionError(id, "task name must not contain %q", Separator)
		}
		resolved := map[string]graph.Binding{}
		for _, param := range sortedKeys(task.Parameters) {
			binding, err := resolveParam(task.Parameters[param], params)
			if err != nil {
				return nil, types.NewDefinitionError(id+"."+param, "%v", err)
			}
			resolved[param] = binding
		}
		attrs := inherited{optional: from.optional || task.Optional}
		if len(from.volatile)+len(task.Volatile) > 0 {
			attrs.volatile = append(append([]string{}, from.volatile...), task.Volatile...)
		}
		if !task.IsNested() {
			if _, ok := s.nodes[id]; ok {
				return nil, types.NewDefinitionError(id, "duplicate task after flattening")
			}
			s.nodes[id] = &plan.Node{
				ID:         id,
				Operation:  task.Operation,
				Version:    task.OperationVersion(),
				Parameters: resolved,
				Optional:   attrs.optional,
				Volatile:   attrs.volatile,
			}
			continue
		}
		child, err := s.inline(id, task, resolved, stack, attrs)
		if err != nil {
			return nil, err
		}
		children[name] = child
		connected[name] = map[string]bool{}
	}

	origin := func(port graph.PortRef) (graph.PortRef, error) {
		child, ok := children[port.Task]
		if !ok {
			return graph.PortRef{Task: prefix + port.Task, Port: port.Port}, nil
		}
		inner, ok := child.outputs[port.Port]
		if !ok {
			return graph.PortRef{}, types.NewDefinitionError(prefix+port.String(), "nested workflow %v has no sink %v", workflow.Tasks[port.Task].Workflow, port.Port)
		}
		return inner, nil
	}
	destination := func(port graph.PortRef) ([]graph.PortRef, error) {
		child, ok := children[port.Task]
		if !ok {
			return []graph.PortRef{{Task: prefix + port.Task, Port: port.Port}}, nil
		}
		inner, ok := child.inputs[port.Port]
		if !ok {
			return nil, types.NewDefinitionError(prefix+port.String(), "nested workflow %v has no source %v", workflow.Tasks[port.Task].Workflow, port.Port)
		}
		connected[port.Task][port.Port] = true
		return inner, nil
	}

	for _, edge := range workflow.Edges {
		src, err := origin(edge.Origin)
		if err != nil {
			return nil, err
		}
		for _, target := range edge.Destinations {
			ports, err := destination(target)
			if err != nil {
				return nil, err
			}
			for _, port := range ports {
				if err = s.bind(port, graph.OutputRef(src.Task, src.Port)); err != nil {
					return nil, err
				}
			}
		}
	}

	result := &scope{inputs: map[string][]graph.PortRef{}, outputs: map[string]graph.PortRef{}}
	for _, name := range workflow.SourceNames() {
		for _, target := range workflow.Sources[name] {
			ports, err := destination(target)
			if err != nil {
				return nil, err
			}
			result.inputs[name] = append(result.inputs[name], ports...)
		}
	}
	if prefix == "" {
		for name, ports := range result.inputs {
			for _, port := range ports {
				if err := s.bind(port, graph.SourceRef(name)); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, name := range sortedKeys(workflow.Sinks) {
		port, err := origin(workflow.Sinks[name])
		if err != nil {
			return nil, err
		}
		result.outputs[name] = port
	}

	for _, name := range sortedKeys(children) {
		for _, source := range sortedKeys(children[name].inputs) {
			if !connected[name][source] {
				return nil, types.NewDefinitionError(prefix+name+"."+source, "source of nested workflow %v is not bound", workflow.Tasks[name].Workflow)
			}
		}
	}
	return result, nil
}

// inline resolves the nested workflow referenced by task and flattens it under id
func (s *session) inline(id string, task *graph.Task, bindings map[string]graph.Binding, stack []string, attrs inherited) (*scope, error) {
	if len(stack) > s.service.maxDepth {
		return nil, types.NewDefinitionError(id, "workflow nesting exceeds max depth %d", s.service.maxDepth)
	}
	for _, name := range stack {
		if name == task.Workflow {
			return nil, types.NewDefinitionError(id, "recursive workflow reference %v", strings.Join(append(stack, task.Workflow), " -> "))
		}
	}
	if s.service.lookup == nil {
		return nil, types.NewDefinitionError(id, "no workflow lookup configured for nested workflow %v", task.Workflow)
	}
	inner, err := s.service.lookup.Lookup(s.ctx, task.Workflow)
	if err != nil {
		return nil, types.NewDefinitionError(id, "unable to resolve nested workflow %v: %v", task.Workflow, err)
	}
	params := map[string]graph.Binding{}
	for name, value := range inner.Parameters {
		params[name] = graph.Literal(value)
	}
	for _, name := range sortedKeys(bindings) {
		if _, ok := inner.Parameters[name]; !ok {
			return nil, types.NewDefinitionError(id+"."+name, "nested workflow %v declares no parameter %v", task.Workflow, name)
		}
		params[name] = bindings[name]
	}
	return s.flatten(inner, id+Separator, params, stack, attrs)
}

func (s *session) bind(port graph.PortRef, binding graph.Binding) error {
	if existing, ok := s.bindings[port]; ok {
		return types.NewDefinitionError(port.String(), "input bound more than once (%v and %v)", existing, binding)
	}
	s.bindings[port] = binding
	return nil
}

func resolveParam(binding graph.Binding, params map[string]graph.Binding) (graph.Binding, error) {
	if binding.Kind != graph.BindingParam {
		return binding, nil
	}
	resolved, ok := params[binding.Param]
	if !ok {
		return graph.Binding{}, fmt.Errorf("%v references undeclared parameter %v", binding, binding.Param)
	}
	return resolved, nil
}

// sortNodes links upstream/downstream sets and runs Kahn's algorithm with lexical tie-breaking
func sortNodes(nodes map[string]*plan.Node) ([]string, error) {
	inDegree := map[string]int{}
	for id, node := range nodes {
		upstream := map[string]bool{}
		for _, binding := range node.Inputs {
			if binding.Kind != graph.BindingOutput {
				continue
			}
			if _, ok := nodes[binding.Output.Task]; !ok {
				return nil, types.NewDefinitionError(binding.Output.String(), "unknown task")
			}
			upstream[binding.Output.Task] = true
		}
		node.Upstream = sortedKeys(upstream)
		inDegree[id] = len(node.Upstream)
	}
	for _, id := range sortedKeys(nodes) {
		for _, up := range nodes[id].Upstream {
			nodes[up].Downstream = append(nodes[up].Downstream, id)
		}
	}

	var ready []string
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		nodes[id].Order = len(order)
		order = append(order, id)
		for _, next := range nodes[id].Downstream {
			inDegree[next]--
			if inDegree[next] == 0 {
				idx := sort.SearchStrings(ready, next)
				ready = append(ready, "")
				copy(ready[idx+1:], ready[idx:])
				ready[idx] = next
			}
		}
	}
	if len(order) != len(nodes) {
		var cycle []string
		for id, degree := range inDegree {
			if degree > 0 {
				cycle = append(cycle, id)
			}
		}
		sort.Strings(cycle)
		return nil, types.NewDefinitionError(strings.Join(cycle, ", "), "cycle detected")
	}
	return order, nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// New creates a resolver; lookup may be nil when no nested workflows are used
func New(lookup Lookup, opts ...Option) *Service {
	ret := &Service{lookup: lookup, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}
