package execution

import (
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/progress"
)

// Run is one execution instance of a workflow. It owns its task states.
type Run struct {
	ID         string                    `json:"id"`
	Name       string                    `json:"name,omitempty"`
	Workflow   string                    `json:"workflow"`
	Definition *model.Workflow           `json:"definition,omitempty"`
	Inputs     map[string]interface{}    `json:"inputs,omitempty"`
	Parameters map[string]interface{}    `json:"parameters,omitempty"`
	Status     RunStatus                 `json:"status"`
	Details    Details                   `json:"details"`
	Error      *types.ErrorRecord        `json:"error,omitempty"`
	Tasks      map[string]*TaskExecution `json:"tasks"`
	// Order lists task ids in the resolver's topological order.
	Order    []string               `json:"order"`
	Outputs  map[string]interface{} `json:"outputs,omitempty"`
	Progress progress.Counters      `json:"progress"`
}

// TaskList returns task states in topological order
func (r *Run) TaskList() []*TaskExecution {
	result := make([]*TaskExecution, 0, len(r.Order))
	for _, id := range r.Order {
		if task, ok := r.Tasks[id]; ok {
			result = append(result, task)
		}
	}
	return result
}

// Clone returns a snapshot of the run. The definition is shared as it is never mutated.
func (r *Run) Clone() *Run {
	ret := *r
	ret.Tasks = make(map[string]*TaskExecution, len(r.Tasks))
	for id, task := range r.Tasks {
		ret.Tasks[id] = task.Clone()
	}
	ret.Order = append([]string(nil), r.Order...)
	ret.Inputs = cloneMap(r.Inputs)
	ret.Parameters = cloneMap(r.Parameters)
	ret.Outputs = cloneMap(r.Outputs)
	if r.Error != nil {
		record := *r.Error
		ret.Error = &record
	}
	return &ret
}

func cloneMap(source map[string]interface{}) map[string]interface{} {
	if source == nil {
		return nil
	}
	ret := make(map[string]interface{}, len(source))
	for k, v := range source {
		ret[k] = v
	}
	return ret
}
