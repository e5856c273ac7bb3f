package scheduler

import (
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/event"
	"github.com/viant/geoflow/service/fingerprint"
)

type Option func(s *Service)

// WithRunDAO sets where run snapshots are persisted
func WithRunDAO(runDAO dao.Service[string, execution.Run]) Option {
	return func(s *Service) {
		s.runDAO = runDAO
	}
}

// WithEngine sets the fingerprint engine
func WithEngine(engine *fingerprint.Engine) Option {
	return func(s *Service) {
		s.engine = engine
	}
}

// WithEvents publishes task transitions and run status changes
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}
