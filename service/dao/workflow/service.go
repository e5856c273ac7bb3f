package workflow

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/geoflow/internal/yml"
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/graph"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/service/dao/workflow/reference"
	"github.com/viant/geoflow/service/meta"
	"gopkg.in/yaml.v3"
)

var extensions = []string{".yaml", ".yml"}

// Service loads workflow definitions by name from storage and keeps parsed definitions
type Service struct {
	metaService *meta.Service
	registered  map[string]*model.Workflow
	mux         sync.RWMutex
}

// DecodeYAML decodes a workflow from YAML
func (s *Service) DecodeYAML(encoded []byte) (*model.Workflow, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(encoded, &node); err != nil {
		return nil, types.NewDefinitionError("", "invalid yaml: %v", err)
	}
	return s.ParseWorkflow("", &node)
}

// Load loads a workflow from YAML at the specified URL
func (s *Service) Load(ctx context.Context, URL string) (*model.Workflow, error) {
	if path.Ext(URL) == "" {
		URL += extensions[0]
	}
	var node yaml.Node
	if err := s.metaService.Load(ctx, URL, &node); err != nil {
		return nil, fmt.Errorf("failed to load workflow from %s: %w", URL, err)
	}
	return s.ParseWorkflow(s.metaService.URL(URL), &node)
}

// Lookup returns a registered definition or loads <base>/<name>.yaml
func (s *Service) Lookup(ctx context.Context, name string) (*model.Workflow, error) {
	s.mux.RLock()
	workflow, ok := s.registered[name]
	s.mux.RUnlock()
	if ok {
		return workflow, nil
	}
	for _, ext := range extensions {
		exists, err := s.metaService.Exists(ctx, name+ext)
		if err != nil || !exists {
			continue
		}
		if workflow, err = s.Load(ctx, name+ext); err != nil {
			return nil, err
		}
		if workflow.Name != name {
			workflow.Name = name
		}
		s.mux.Lock()
		s.registered[name] = workflow
		s.mux.Unlock()
		return workflow, nil
	}
	return nil, types.NewDefinitionError(name, "workflow not found")
}

// Register adds or replaces an in-memory definition
func (s *Service) Register(workflow *model.Workflow) error {
	if issues := workflow.Validate(); len(issues) > 0 {
		return types.NewDefinitionError(workflow.Name, "%v", issues[0])
	}
	s.mux.Lock()
	s.registered[workflow.Name] = workflow
	s.mux.Unlock()
	return nil
}

// List returns names of registered and stored definitions
func (s *Service) List(ctx context.Context) ([]string, error) {
	unique := map[string]bool{}
	s.mux.RLock()
	for name := range s.registered {
		unique[name] = true
	}
	s.mux.RUnlock()
	if s.metaService.BaseURL() != "" {
		names, err := s.metaService.List(ctx, "", extensions...)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			unique[name] = true
		}
	}
	var result []string
	for name := range unique {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// ParseWorkflow validates the document against the workflow schema and decodes it
func (s *Service) ParseWorkflow(URL string, node *yaml.Node) (*model.Workflow, error) {
	root := (*yml.Node)(node).Root()
	ref := nameFromURL(URL)
	if err := validateDocument(root.Interface()); err != nil {
		return nil, types.NewDefinitionError(ref, "%v", err)
	}
	workflow := model.NewWorkflow(ref)
	if URL != "" {
		workflow.Source = &model.Source{URL: URL}
	}
	if err := parseWorkflow(root, workflow); err != nil {
		return nil, types.NewDefinitionError(ref, "%v", err)
	}
	if issues := workflow.Validate(); len(issues) > 0 {
		return nil, types.NewDefinitionError(workflow.Name, "%v", issues[0])
	}
	return workflow, nil
}

func parseWorkflow(root *yml.Node, workflow *model.Workflow) error {
	return root.Pairs(func(key string, node *yml.Node) error {
		switch key {
		case "name":
			workflow.Name = node.Value
		case "description":
			parseDescription(node, workflow)
		case "parameters":
			if node.Kind != yaml.MappingNode {
				return nil
			}
			return node.Pairs(func(name string, value *yml.Node) error {
				workflow.Parameters[name] = value.Interface()
				return nil
			})
		case "sources":
			if node.Kind != yaml.MappingNode {
				return nil
			}
			return node.Pairs(func(name string, value *yml.Node) error {
				ports, err := parsePorts(value)
				if err != nil {
					return fmt.Errorf("source %s: %w", name, err)
				}
				workflow.Sources[name] = ports
				return nil
			})
		case "sinks":
			if node.Kind != yaml.MappingNode {
				return nil
			}
			return node.Pairs(func(name string, value *yml.Node) error {
				port, err := graph.ParsePortRef(value.Value)
				if err != nil {
					return fmt.Errorf("sink %s: %w", name, err)
				}
				workflow.Sinks[name] = port
				return nil
			})
		case "tasks":
			return node.Pairs(func(name string, value *yml.Node) error {
				task, err := parseTask(name, value)
				if err != nil {
					return fmt.Errorf("task %s: %w", name, err)
				}
				workflow.Tasks[name] = task
				return nil
			})
		case "edges":
			if node.Kind != yaml.SequenceNode {
				return nil
			}
			return node.Items(func(index int, value *yml.Node) error {
				edge, err := parseEdge(value)
				if err != nil {
					return fmt.Errorf("edge[%d]: %w", index, err)
				}
				workflow.Edges = append(workflow.Edges, edge)
				return nil
			})
		}
		return nil
	})
}

// parseDescription accepts a plain string or a mapping with short/long descriptions and per input, output and parameter docs
func parseDescription(node *yml.Node, workflow *model.Workflow) {
	if node.Kind == yaml.ScalarNode {
		workflow.Description = node.Value
		return
	}
	if node.Kind != yaml.MappingNode {
		return
	}
	doc := &model.Documentation{}
	if value := node.Lookup("short_description"); value != nil {
		doc.ShortDescription = strings.TrimSpace(value.Value)
	}
	if value := node.Lookup("long_description"); value != nil {
		doc.LongDescription = strings.TrimSpace(value.Value)
	}
	var parts []string
	for _, part := range []string{doc.ShortDescription, doc.LongDescription} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	workflow.Description = strings.Join(parts, "\n")
	doc.Inputs = describedNames(node.Lookup("inputs"))
	doc.Outputs = describedNames(node.Lookup("outputs"))
	workflow.ParameterDescriptions = describedNames(node.Lookup("parameters"))
	workflow.Documentation = doc
}

func describedNames(node *yml.Node) map[string]string {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	ret := map[string]string{}
	_ = node.Pairs(func(name string, value *yml.Node) error {
		ret[name] = value.Value
		return nil
	})
	return ret
}

func parseTask(name string, node *yml.Node) (*graph.Task, error) {
	task := &graph.Task{Name: name}
	err := node.Pairs(func(key string, value *yml.Node) error {
		switch key {
		case "op":
			task.Operation = value.Value
		case "op_version":
			task.Version = value.Value
		case "workflow":
			task.Workflow = value.Value
		case "description":
			task.Description = value.Value
		case "optional":
			flag, ok := value.Interface().(bool)
			if !ok {
				return fmt.Errorf("optional should be a boolean")
			}
			task.Optional = flag
		case "volatile":
			slots, err := value.Strings()
			if err != nil {
				return fmt.Errorf("volatile: %w", err)
			}
			task.Volatile = slots
		case "parameters":
			if value.Kind != yaml.MappingNode {
				return nil
			}
			return value.Pairs(func(param string, paramNode *yml.Node) error {
				binding, err := parseBinding(paramNode)
				if err != nil {
					return fmt.Errorf("parameter %s: %w", param, err)
				}
				task.WithBinding(param, binding)
				return nil
			})
		}
		return nil
	})
	return task, err
}

// parseBinding turns @from(name) into a parameter reference; anything else is a literal
func parseBinding(node *yml.Node) (graph.Binding, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" && reference.IsReference(node.Value) {
		ref, err := reference.Parse([]byte(node.Value))
		if err != nil {
			return graph.Binding{}, err
		}
		return graph.ParamRef(ref.Name), nil
	}
	return graph.Literal(node.Interface()), nil
}

func parseEdge(node *yml.Node) (*graph.Edge, error) {
	edge := &graph.Edge{}
	origin := node.Lookup("origin")
	if origin == nil {
		return nil, fmt.Errorf("missing origin")
	}
	var err error
	if edge.Origin, err = graph.ParsePortRef(origin.Value); err != nil {
		return nil, err
	}
	destination := node.Lookup("destination")
	if destination == nil {
		return nil, fmt.Errorf("missing destination")
	}
	if edge.Destinations, err = parsePorts(destination); err != nil {
		return nil, err
	}
	return edge, nil
}

func parsePorts(node *yml.Node) ([]graph.PortRef, error) {
	texts, err := node.Strings()
	if err != nil {
		return nil, err
	}
	ports := make([]graph.PortRef, 0, len(texts))
	for _, text := range texts {
		port, err := graph.ParsePortRef(text)
		if err != nil {
			return nil, err
		}
		ports = append(ports, port)
	}
	return ports, nil
}

func nameFromURL(URL string) string {
	if URL == "" {
		return ""
	}
	base := path.Base(URL)
	return strings.TrimSuffix(base, path.Ext(base))
}

// New creates a workflow definition service; without a meta service only registered definitions resolve
func New(opts ...Option) *Service {
	ret := &Service{registered: map[string]*model.Workflow{}}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.metaService == nil {
		ret.metaService = meta.New(afs.New(), "")
	}
	return ret
}
