package graph

const DefaultVersion = "1"

type (
	// Task is a named reference to an operation, or to a nested workflow, within a workflow scope.
	Task struct {
		Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
		Description string             `json:"description,omitempty" yaml:"description,omitempty"`
		Operation   string             `json:"op,omitempty" yaml:"op,omitempty"`
		Version     string             `json:"opVersion,omitempty" yaml:"op_version,omitempty"`
		Workflow    string             `json:"workflow,omitempty" yaml:"workflow,omitempty"`
		Parameters  map[string]Binding `json:"parameters,omitempty" yaml:"parameters,omitempty"`
		Optional    bool               `json:"optional,omitempty" yaml:"optional,omitempty"`
		// Volatile lists input slots excluded from fingerprinting.
		Volatile []string `json:"volatile,omitempty" yaml:"volatile,omitempty"`
	}

	// Edge connects one task output to one or more task inputs.
	Edge struct {
		Origin       PortRef   `json:"origin" yaml:"origin"`
		Destinations []PortRef `json:"destination" yaml:"destination"`
	}
)

// IsNested returns true when the task is a sub-workflow reference.
func (t *Task) IsNested() bool {
	return t.Workflow != ""
}

// OperationVersion returns the version or the default one.
func (t *Task) OperationVersion() string {
	if t.Version == "" {
		return DefaultVersion
	}
	return t.Version
}

// WithOperation sets the operation identity.
func (t *Task) WithOperation(name, version string) *Task {
	t.Operation = name
	t.Version = version
	return t
}

// WithWorkflow makes the task a nested workflow reference.
func (t *Task) WithWorkflow(name string) *Task {
	t.Workflow = name
	return t
}

// WithParameter binds a parameter to a literal value.
func (t *Task) WithParameter(name string, value interface{}) *Task {
	return t.WithBinding(name, Literal(value))
}

// WithParameterRef binds a parameter to an enclosing workflow parameter.
func (t *Task) WithParameterRef(name, param string) *Task {
	return t.WithBinding(name, ParamRef(param))
}

func (t *Task) WithBinding(name string, binding Binding) *Task {
	if t.Parameters == nil {
		t.Parameters = make(map[string]Binding)
	}
	t.Parameters[name] = binding
	return t
}

// AsOptional marks the task as not required for run success.
func (t *Task) AsOptional() *Task {
	t.Optional = true
	return t
}
