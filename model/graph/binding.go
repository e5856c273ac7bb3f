package graph

import (
	"fmt"
	"strings"
)

// BindingKind discriminates Binding variants.
type BindingKind string

const (
	BindingLiteral BindingKind = "literal"
	BindingParam   BindingKind = "param"
	BindingOutput  BindingKind = "output"
	BindingSource  BindingKind = "source"
)

// Binding is a tagged value bound to a task parameter or input port.
// Only the field matching Kind is meaningful.
type Binding struct {
	Kind   BindingKind `json:"kind" yaml:"kind"`
	Value  interface{} `json:"value,omitempty" yaml:"value,omitempty"`
	Param  string      `json:"param,omitempty" yaml:"param,omitempty"`
	Output *PortRef    `json:"output,omitempty" yaml:"output,omitempty"`
	Source string      `json:"source,omitempty" yaml:"source,omitempty"`
}

func Literal(value interface{}) Binding {
	return Binding{Kind: BindingLiteral, Value: value}
}

func ParamRef(name string) Binding {
	return Binding{Kind: BindingParam, Param: name}
}

func OutputRef(task, port string) Binding {
	return Binding{Kind: BindingOutput, Output: &PortRef{Task: task, Port: port}}
}

func SourceRef(name string) Binding {
	return Binding{Kind: BindingSource, Source: name}
}

func (b Binding) String() string {
	switch b.Kind {
	case BindingParam:
		return "@from(" + b.Param + ")"
	case BindingOutput:
		return b.Output.String()
	case BindingSource:
		return "source:" + b.Source
	}
	return fmt.Sprintf("%v", b.Value)
}

// PortRef addresses a named input or output port of a task.
type PortRef struct {
	Task string `json:"task" yaml:"task"`
	Port string `json:"port" yaml:"port"`
}

func (p PortRef) String() string { return p.Task + "." + p.Port }

// ParsePortRef parses "task.port". The task part may itself be namespaced with '/'.
func ParsePortRef(text string) (PortRef, error) {
	text = strings.TrimSpace(text)
	idx := strings.LastIndexByte(text, '.')
	if idx <= 0 || idx == len(text)-1 {
		return PortRef{}, fmt.Errorf("invalid port reference %q, expected task.port", text)
	}
	return PortRef{Task: text[:idx], Port: text[idx+1:]}, nil
}
