package model

import "github.com/viant/geoflow/model/graph"

// Documentation describes a workflow for clients
type Documentation struct {
	Inputs           map[string]string `json:"inputs" yaml:"inputs,omitempty"`
	Outputs          map[string]string `json:"outputs" yaml:"outputs,omitempty"`
	Parameters       map[string]string `json:"parameters" yaml:"parameters,omitempty"`
	TaskDescriptions map[string]string `json:"task_descriptions" yaml:"task_descriptions,omitempty"`
	ShortDescription string            `json:"short_description" yaml:"short_description,omitempty"`
	LongDescription  string            `json:"long_description" yaml:"long_description,omitempty"`
}

// Describe documents every source, sink, parameter and task; undocumented entries are empty
func (w *Workflow) Describe() *Documentation {
	ret := &Documentation{
		Inputs:           map[string]string{},
		Outputs:          map[string]string{},
		Parameters:       map[string]string{},
		TaskDescriptions: map[string]string{},
		ShortDescription: w.Description,
	}
	if doc := w.Documentation; doc != nil {
		ret.ShortDescription, ret.LongDescription = doc.ShortDescription, doc.LongDescription
		copyInto(ret.Inputs, doc.Inputs)
		copyInto(ret.Outputs, doc.Outputs)
	}
	for name := range w.Sources {
		if _, ok := ret.Inputs[name]; !ok {
			ret.Inputs[name] = ""
		}
	}
	for name := range w.Sinks {
		if _, ok := ret.Outputs[name]; !ok {
			ret.Outputs[name] = ""
		}
	}
	for name := range w.Parameters {
		ret.Parameters[name] = w.ParameterDescriptions[name]
	}
	for name, task := range w.Tasks {
		ret.TaskDescriptions[name] = task.Description
	}
	return ret
}

// Document renders the workflow in its YAML definition layout
func (w *Workflow) Document() map[string]interface{} {
	ret := map[string]interface{}{"name": w.Name}
	switch {
	case w.Documentation != nil:
		description := map[string]interface{}{}
		doc := w.Documentation
		for key, value := range map[string]string{"short_description": doc.ShortDescription, "long_description": doc.LongDescription} {
			if value != "" {
				description[key] = value
			}
		}
		for key, value := range map[string]map[string]string{"inputs": doc.Inputs, "outputs": doc.Outputs, "parameters": w.ParameterDescriptions} {
			if len(value) > 0 {
				description[key] = value
			}
		}
		ret["description"] = description
	case w.Description != "":
		ret["description"] = w.Description
	}
	if len(w.Sources) > 0 {
		sources := map[string]interface{}{}
		for name, ports := range w.Sources {
			sources[name] = portStrings(ports)
		}
		ret["sources"] = sources
	}
	if len(w.Sinks) > 0 {
		sinks := map[string]interface{}{}
		for name, port := range w.Sinks {
			sinks[name] = port.String()
		}
		ret["sinks"] = sinks
	}
	if len(w.Parameters) > 0 {
		ret["parameters"] = w.Parameters
	}
	tasks := map[string]interface{}{}
	for name, task := range w.Tasks {
		tasks[name] = taskDocument(task)
	}
	ret["tasks"] = tasks
	if len(w.Edges) > 0 {
		edges := make([]interface{}, 0, len(w.Edges))
		for _, edge := range w.Edges {
			edges = append(edges, map[string]interface{}{
				"origin":      edge.Origin.String(),
				"destination": portStrings(edge.Destinations),
			})
		}
		ret["edges"] = edges
	}
	return ret
}

func taskDocument(task *graph.Task) map[string]interface{} {
	ret := map[string]interface{}{}
	if task.IsNested() {
		ret["workflow"] = task.Workflow
	} else {
		ret["op"] = task.Operation
		if task.Version != "" {
			ret["op_version"] = task.Version
		}
	}
	if task.Description != "" {
		ret["description"] = task.Description
	}
	if len(task.Parameters) > 0 {
		parameters := map[string]interface{}{}
		for name, binding := range task.Parameters {
			if binding.Kind == graph.BindingLiteral {
				parameters[name] = binding.Value
				continue
			}
			parameters[name] = binding.String()
		}
		ret["parameters"] = parameters
	}
	if task.Optional {
		ret["optional"] = true
	}
	if len(task.Volatile) > 0 {
		ret["volatile"] = task.Volatile
	}
	return ret
}

func portStrings(ports []graph.PortRef) []string {
	ret := make([]string, 0, len(ports))
	for _, port := range ports {
		ret = append(ret, port.String())
	}
	return ret
}

func copyInto(dest, source map[string]string) {
	for k, v := range source {
		dest[k] = v
	}
}
