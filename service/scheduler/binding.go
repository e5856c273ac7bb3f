package scheduler

import (
	"fmt"

	"github.com/viant/geoflow/model/graph"
	"github.com/viant/geoflow/model/plan"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/fingerprint"
)

// bind resolves node slots against run inputs, parameters and upstream outputs.
// It returns the invocation fingerprint and the values sent to the worker.
func (r *runner) bind(node *plan.Node) (string, map[string]interface{}, error) {
	slots := make(map[string]fingerprint.Input, len(node.Inputs)+len(node.Parameters))
	values := make(map[string]interface{}, len(node.Inputs)+len(node.Parameters))
	resolve := func(slot string, binding graph.Binding) error {
		var input fingerprint.Input
		switch binding.Kind {
		case graph.BindingLiteral:
			values[slot] = binding.Value
			input = fingerprint.LiteralInput(binding.Value)
		case graph.BindingParam:
			value := r.run.Parameters[binding.Param]
			values[slot] = value
			input = fingerprint.LiteralInput(value)
		case graph.BindingSource:
			value, ok := r.run.Inputs[binding.Source]
			if !ok {
				return fmt.Errorf("slot %v: source %v has no input", slot, binding.Source)
			}
			values[slot] = value
			input = fingerprint.LiteralInput(value)
		case graph.BindingOutput:
			upstream := r.run.Tasks[binding.Output.Task]
			if upstream == nil || upstream.State != execution.TaskStateSucceeded {
				return fmt.Errorf("slot %v: upstream %v has not succeeded", slot, binding.Output)
			}
			value, _ := upstream.Output.Port(binding.Output.Port)
			values[slot] = value
			input = fingerprint.UpstreamInput(upstream.Fingerprint, binding.Output.Port)
		default:
			return fmt.Errorf("slot %v: unsupported binding kind %q", slot, binding.Kind)
		}
		if !node.IsVolatile(slot) {
			slots[slot] = input
		}
		return nil
	}
	for slot, binding := range node.Parameters {
		if err := resolve(slot, binding); err != nil {
			return "", nil, err
		}
	}
	for slot, binding := range node.Inputs {
		if err := resolve(slot, binding); err != nil {
			return "", nil, err
		}
	}
	fp, err := r.service.engine.Fingerprint(node.Operation, node.Version, slots)
	if err != nil {
		return "", nil, err
	}
	return fp, values, nil
}
