package geoflow

import (
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/event"
	"github.com/viant/geoflow/service/meta"
	"github.com/viant/geoflow/service/worker"
	"github.com/viant/geoflow/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the Service
type Option func(s *Service)

// WithConfig replaces the default configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithFileSystem sets the storage used by fs stores, queues and the asset store
func WithFileSystem(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithMetaService sets the meta service used to load workflow definitions
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) {
		s.metaService = service
	}
}

// WithMetaBaseURL sets the workflow definitions base URL
func WithMetaBaseURL(URL string) Option {
	return func(s *Service) {
		s.config.Workflows.BaseURL = URL
	}
}

// WithMetaFsOptions with meta file system options
func WithMetaFsOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.metaFsOptions = options
	}
}

// WithWorkflows registers in-memory definitions resolvable by name
func WithWorkflows(workflows ...*model.Workflow) Option {
	return func(s *Service) {
		s.workflows = append(s.workflows, workflows...)
	}
}

// WithOperation registers a worker operation under name@version
func WithOperation(name, version string, operation worker.Operation) Option {
	return func(s *Service) {
		s.operations = append(s.operations, registration{name: name, version: version, operation: operation})
	}
}

// WithEventService sets the event service task transitions are published on
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithRunDAO sets the run snapshot store
func WithRunDAO(runDAO dao.Service[string, execution.Run]) Option {
	return func(s *Service) {
		s.runDAO = runDAO
	}
}

// WithEntryDAO sets the cache entry store
func WithEntryDAO(entryDAO dao.Service[string, output.Entry]) Option {
	return func(s *Service) {
		s.entryDAO = entryDAO
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter, for example
// OTLP or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
