package model

import (
	"fmt"
	"sort"

	"github.com/viant/geoflow/model/graph"
)

// Source provides information about the origin of a workflow definition
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Workflow represents a workflow definition
type Workflow struct {
	Source      *Source `json:"source,omitempty" yaml:"source,omitempty"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`

	// Sources map external input names to the task input ports they feed.
	Sources map[string][]graph.PortRef `json:"sources,omitempty" yaml:"sources,omitempty"`

	// Sinks map output names to the task output port producing them.
	Sinks map[string]graph.PortRef `json:"sinks,omitempty" yaml:"sinks,omitempty"`

	// Parameters declares substitutable names with their default values (nil when none).
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// ParameterDescriptions documents declared parameters.
	ParameterDescriptions map[string]string `json:"parameterDescriptions,omitempty" yaml:"parameterDescriptions,omitempty"`

	// Documentation keeps a structured description block as written.
	Documentation *Documentation `json:"-" yaml:"-"`

	Tasks map[string]*graph.Task `json:"tasks" yaml:"tasks"`
	Edges []*graph.Edge          `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// NewWorkflow creates an empty workflow
func NewWorkflow(name string) *Workflow {
	return &Workflow{
		Name:       name,
		Sources:    map[string][]graph.PortRef{},
		Sinks:      map[string]graph.PortRef{},
		Parameters: map[string]interface{}{},
		Tasks:      map[string]*graph.Task{},
	}
}

// NewTask adds a task to the workflow
func (w *Workflow) NewTask(name string) *graph.Task {
	if w.Tasks == nil {
		w.Tasks = map[string]*graph.Task{}
	}
	task := &graph.Task{Name: name}
	w.Tasks[name] = task
	return task
}

// WithParameter declares a parameter with its default
func (w *Workflow) WithParameter(name string, defaultValue interface{}) *Workflow {
	if w.Parameters == nil {
		w.Parameters = map[string]interface{}{}
	}
	w.Parameters[name] = defaultValue
	return w
}

// WithSource declares an external input feeding the supplied "task.port" destinations
func (w *Workflow) WithSource(name string, destinations ...string) *Workflow {
	if w.Sources == nil {
		w.Sources = map[string][]graph.PortRef{}
	}
	for _, destination := range destinations {
		ref, err := graph.ParsePortRef(destination)
		if err != nil {
			panic(err)
		}
		w.Sources[name] = append(w.Sources[name], ref)
	}
	return w
}

// WithSink declares a named output produced by the "task.port" origin
func (w *Workflow) WithSink(name string, origin string) *Workflow {
	if w.Sinks == nil {
		w.Sinks = map[string]graph.PortRef{}
	}
	ref, err := graph.ParsePortRef(origin)
	if err != nil {
		panic(err)
	}
	w.Sinks[name] = ref
	return w
}

// Connect adds an edge from origin to destinations, all in "task.port" form
func (w *Workflow) Connect(origin string, destinations ...string) *Workflow {
	edge := &graph.Edge{}
	var err error
	if edge.Origin, err = graph.ParsePortRef(origin); err != nil {
		panic(err)
	}
	for _, destination := range destinations {
		ref, err := graph.ParsePortRef(destination)
		if err != nil {
			panic(err)
		}
		edge.Destinations = append(edge.Destinations, ref)
	}
	w.Edges = append(w.Edges, edge)
	return w
}

// TaskNames returns task names in lexical order
func (w *Workflow) TaskNames() []string {
	names := make([]string, 0, len(w.Tasks))
	for name := range w.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceNames returns source names in lexical order
func (w *Workflow) SourceNames() []string {
	names := make([]string, 0, len(w.Sources))
	for name := range w.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate performs a structural validation of one workflow scope. Nested
// workflow references and cycles are checked by the resolver, which has
// visibility of the whole composition.
func (w *Workflow) Validate() []error {
	var issues []error
	if w.Name == "" {
		issues = append(issues, fmt.Errorf("workflow name is empty"))
	}
	if len(w.Tasks) == 0 {
		issues = append(issues, fmt.Errorf("workflow %s has no tasks", w.Name))
	}
	for _, name := range w.TaskNames() {
		task := w.Tasks[name]
		if task == nil {
			issues = append(issues, fmt.Errorf("task %s is empty", name))
			continue
		}
		switch {
		case task.Operation != "" && task.Workflow != "":
			issues = append(issues, fmt.Errorf("task %s defines both op and workflow", name))
		case task.Operation == "" && task.Workflow == "":
			issues = append(issues, fmt.Errorf("task %s defines neither op nor workflow", name))
		}
		for param, binding := range task.Parameters {
			if binding.Kind == graph.BindingParam {
				if _, ok := w.Parameters[binding.Param]; !ok {
					issues = append(issues, fmt.Errorf("task %s parameter %s references undeclared parameter %s", name, param, binding.Param))
				}
			}
		}
	}
	for _, name := range w.SourceNames() {
		for _, ref := range w.Sources[name] {
			if _, ok := w.Tasks[ref.Task]; !ok {
				issues = append(issues, fmt.Errorf("source %s feeds unknown task %s", name, ref.Task))
			}
		}
	}
	for name, ref := range w.Sinks {
		if _, ok := w.Tasks[ref.Task]; !ok {
			issues = append(issues, fmt.Errorf("sink %s reads unknown task %s", name, ref.Task))
		}
	}
	for _, edge := range w.Edges {
		if _, ok := w.Tasks[edge.Origin.Task]; !ok {
			issues = append(issues, fmt.Errorf("edge origin %s references unknown task", edge.Origin))
		}
		if len(edge.Destinations) == 0 {
			issues = append(issues, fmt.Errorf("edge origin %s has no destination", edge.Origin))
		}
		for _, destination := range edge.Destinations {
			if _, ok := w.Tasks[destination.Task]; !ok {
				issues = append(issues, fmt.Errorf("edge destination %s references unknown task", destination))
			}
			if destination.Task == edge.Origin.Task {
				issues = append(issues, fmt.Errorf("task %s feeds itself", destination.Task))
			}
		}
	}
	return issues
}
