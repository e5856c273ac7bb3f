package workflow

import (
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/service/meta"
)

type Option func(*Service)

// WithMetaService sets the meta service used to load definitions
func WithMetaService(meta *meta.Service) Option {
	return func(s *Service) {
		s.metaService = meta
	}
}

// WithWorkflows registers in-memory definitions
func WithWorkflows(workflows ...*model.Workflow) Option {
	return func(s *Service) {
		for _, workflow := range workflows {
			s.registered[workflow.Name] = workflow
		}
	}
}
