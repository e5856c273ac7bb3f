package geoflow

import (
	"context"
	"fmt"
	"log"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/asset"
	"github.com/viant/geoflow/service/cache"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/dao/entry"
	"github.com/viant/geoflow/service/dao/entry/postgres"
	rundao "github.com/viant/geoflow/service/dao/run"
	"github.com/viant/geoflow/service/dao/workflow"
	"github.com/viant/geoflow/service/dispatcher"
	"github.com/viant/geoflow/service/event"
	"github.com/viant/geoflow/service/fingerprint"
	"github.com/viant/geoflow/service/messaging"
	"github.com/viant/geoflow/service/messaging/fs"
	"github.com/viant/geoflow/service/messaging/memory"
	"github.com/viant/geoflow/service/meta"
	"github.com/viant/geoflow/service/protocol"
	"github.com/viant/geoflow/service/resolver"
	"github.com/viant/geoflow/service/scheduler"
	"github.com/viant/geoflow/service/worker"
)

type registration struct {
	name      string
	version   string
	operation worker.Operation
}

// Service wires the resolver, cache, scheduler, dispatcher and local worker
type Service struct {
	config        *Config
	fs            afs.Service
	metaService   *meta.Service
	metaFsOptions []storage.Option
	workflows     []*model.Workflow
	operations    []registration
	eventService  *event.Service
	runDAO        dao.Service[string, execution.Run]
	entryDAO      dao.Service[string, output.Entry]
	closers       []func()
	runtime       *Runtime
}

// Runtime returns the runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// Events returns the event service task transitions and run statuses are published on
func (s *Service) Events() *event.Service {
	return s.eventService
}

// Close releases stores and queues opened by the service
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Service) init(ctx context.Context) error {
	cfg := s.config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.metaService == nil {
		s.metaService = meta.New(s.fs, cfg.Workflows.BaseURL, s.metaFsOptions...)
	}
	r := s.runtime
	r.workflowDAO = workflow.New(workflow.WithMetaService(s.metaService), workflow.WithWorkflows(s.workflows...))
	r.resolver = resolver.New(r.workflowDAO, resolver.WithMaxDepth(cfg.Resolver.MaxDepth))
	r.engine = fingerprint.New(fingerprint.WithNamespace(cfg.Cache.Namespace))
	r.assets = asset.New(s.fs, cfg.Assets.BaseURL)

	if err := s.ensureStores(ctx); err != nil {
		return err
	}
	cacheOptions := []cache.Option{cache.WithTTL(cfg.Cache.TTL), cache.WithShards(cfg.Cache.Shards)}
	if cfg.Cache.VerifyAssets {
		cacheOptions = append(cacheOptions, cache.WithAssetVerifier(r.assets))
	}
	r.cache = cache.New(s.entryDAO, cacheOptions...)
	r.runDAO = s.runDAO

	if err := s.ensureQueues(ctx); err != nil {
		return err
	}
	r.dispatcher = dispatcher.New(r.requests, r.responses,
		dispatcher.WithConfig(cfg.Dispatcher),
		dispatcher.WithCompleter(r.cache))

	var err error
	if r.scheduler, err = scheduler.New(r.cache, r.dispatcher,
		scheduler.WithEngine(r.engine),
		scheduler.WithRunDAO(s.runDAO),
		scheduler.WithEvents(s.eventService)); err != nil {
		return err
	}

	if cfg.Worker.Enabled {
		r.worker = worker.New(r.requests, r.responses,
			worker.WithConfig(cfg.Worker.Config),
			worker.WithAssets(r.assets))
		for _, item := range s.operations {
			if err = r.worker.Registry().Register(item.name, item.version, item.operation); err != nil {
				return err
			}
		}
	} else if len(s.operations) > 0 {
		log.Printf("geoflow: worker disabled, ignoring %d registered operation(s)", len(s.operations))
	}
	return nil
}

func (s *Service) ensureStores(ctx context.Context) error {
	cfg := s.config
	if s.entryDAO == nil {
		switch cfg.Cache.Store {
		case StoreFs:
			store, err := entry.NewFs(s.fs, cfg.Cache.URL)
			if err != nil {
				return err
			}
			s.entryDAO = store
		case StorePostgres:
			store, err := postgres.Connect(ctx, cfg.Cache.URL)
			if err != nil {
				return err
			}
			s.entryDAO = store
			s.closers = append(s.closers, store.Close)
		default:
			s.entryDAO = entry.NewMemory()
		}
	}
	if s.runDAO == nil {
		switch cfg.Runs.Store {
		case StoreFs:
			store, err := rundao.NewFs(s.fs, cfg.Runs.URL)
			if err != nil {
				return err
			}
			s.runDAO = store
		default:
			s.runDAO = rundao.NewMemory()
		}
	}
	return nil
}

func (s *Service) ensureQueues(ctx context.Context) error {
	cfg := s.config
	r := s.runtime
	switch cfg.Messaging.Vendor {
	case messaging.VendorFs:
		newConfig := func(name string) fs.QueueConfig {
			ret := fs.DefaultConfig()
			ret.BasePath = url.Join(cfg.Messaging.BaseURL, name)
			return ret
		}
		requests, err := fs.NewQueue[protocol.Request](ctx, s.fs, newConfig("requests"))
		if err != nil {
			return err
		}
		responses, err := fs.NewQueue[protocol.Response](ctx, s.fs, newConfig("responses"))
		if err != nil {
			return err
		}
		r.requests, r.responses = requests, responses
		if s.eventService == nil {
			if s.eventService, err = event.New(messaging.VendorFs,
				event.WithFileSystem(s.fs),
				event.WithNewFsQueueConfig(func(name string) fs.QueueConfig {
					return newConfig("events/" + name)
				})); err != nil {
				return err
			}
			s.closers = append(s.closers, s.eventService.Close)
		}
	default:
		r.requests = memory.NewQueue[protocol.Request](memory.DefaultConfig())
		r.responses = memory.NewQueue[protocol.Response](memory.DefaultConfig())
		if s.eventService == nil {
			var err error
			if s.eventService, err = event.New(messaging.VendorMemory); err != nil {
				return err
			}
			s.closers = append(s.closers, s.eventService.Close)
		}
	}
	return nil
}

// New creates a service; options are applied on top of DefaultConfig or the WithConfig one.
func New(options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig(), runtime: &Runtime{}}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(context.Background()); err != nil {
		ret.Close()
		return nil, err
	}
	return ret, nil
}
