package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"dario.cat/mergo"
	"github.com/viant/geoflow/internal/clock"
	"github.com/viant/geoflow/internal/idgen"
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/plan"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/cache"
	"github.com/viant/geoflow/service/dao"
	rundao "github.com/viant/geoflow/service/dao/run"
	"github.com/viant/geoflow/service/dispatcher"
	"github.com/viant/geoflow/service/event"
	"github.com/viant/geoflow/service/fingerprint"
	"github.com/viant/geoflow/service/protocol"
	"github.com/viant/geoflow/tracing"
)

// ErrRunNotFound is returned for unknown run ids
var ErrRunNotFound = errors.New("scheduler: run not found")

// ErrRunFinished is returned when cancelling a run whose tasks are all terminal
var ErrRunFinished = errors.New("scheduler: run already finished")

// Cache is the result cache contract used by the scheduler
type Cache interface {
	LookupOrReserve(ctx context.Context, fingerprint string) (*cache.Lookup, error)
	Fail(ctx context.Context, fingerprint string, record *types.ErrorRecord) error
}

// Dispatcher sends reserved invocations to workers
type Dispatcher interface {
	Dispatch(ctx context.Context, request *protocol.Request, callbacks dispatcher.Callbacks) error
}

// Service owns all active runs
type Service struct {
	cache      Cache
	dispatcher Dispatcher
	engine     *fingerprint.Engine
	runDAO     dao.Service[string, execution.Run]
	events     *event.Service

	transitions *event.Publisher[event.TaskTransition]
	statuses    *event.Publisher[event.RunStatus]

	mux     sync.RWMutex
	runners map[string]*runner
}

// Submit validates run inputs against the plan and starts the run
func (s *Service) Submit(ctx context.Context, definition *model.Workflow, aPlan *plan.Plan, inputs, parameters map[string]interface{}) (*execution.Run, error) {
	for name := range parameters {
		if _, ok := aPlan.Parameters[name]; !ok {
			return nil, types.NewDefinitionError(name, "unknown parameter")
		}
	}
	var missing []string
	for name := range aPlan.Sources {
		if _, ok := inputs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, types.NewDefinitionError(missing[0], "missing source input (%d missing)", len(missing))
	}
	merged := make(map[string]interface{}, len(aPlan.Parameters))
	for k, v := range aPlan.Parameters {
		merged[k] = v
	}
	if len(parameters) > 0 {
		if err := mergo.Merge(&merged, parameters, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return nil, fmt.Errorf("failed to merge parameters: %w", err)
		}
	}

	aRun := &execution.Run{
		ID:         idgen.New(),
		Workflow:   aPlan.Workflow,
		Definition: definition,
		Inputs:     inputs,
		Parameters: merged,
		Status:     execution.RunStatusPending,
		Details:    execution.Details{SubmittedAt: clock.Now()},
		Tasks:      make(map[string]*execution.TaskExecution, len(aPlan.Nodes)),
		Order:      append([]string(nil), aPlan.Order...),
		Outputs:    map[string]interface{}{},
	}
	if definition != nil {
		aRun.Name = definition.Name
	}
	for _, node := range aPlan.Ordered() {
		aRun.Tasks[node.ID] = &execution.TaskExecution{
			TaskID:    node.ID,
			Operation: node.Operation,
			Version:   node.Version,
			State:     execution.TaskStatePending,
		}
	}
	if err := s.runDAO.Save(ctx, aRun); err != nil {
		return nil, fmt.Errorf("failed to save run %v: %w", aRun.ID, err)
	}
	r := newRunner(s, context.WithoutCancel(ctx), aRun, aPlan)
	s.mux.Lock()
	s.runners[aRun.ID] = r
	s.mux.Unlock()
	snapshot := r.snapshot.Load()
	go r.loop()
	return snapshot, nil
}

func (s *Service) runner(runID string) *runner {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.runners[runID]
}

func (s *Service) release(runID string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.runners, runID)
}

// Cancel cooperatively cancels a run. Outstanding worker executions are not interrupted.
func (s *Service) Cancel(ctx context.Context, runID string, reason string) error {
	r := s.runner(runID)
	if r == nil {
		if _, err := s.Run(ctx, runID); err != nil {
			return err
		}
		return ErrRunFinished
	}
	if reason == "" {
		reason = "cancelled by request"
	}
	reply := make(chan error, 1)
	if !r.send(message{kind: messageCancel, reason: reason, reply: reply}) {
		return ErrRunFinished
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run returns a run snapshot
func (s *Service) Run(ctx context.Context, runID string) (*execution.Run, error) {
	if r := s.runner(runID); r != nil {
		return r.snapshot.Load(), nil
	}
	ret, err := s.runDAO.Load(ctx, runID)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrRunNotFound, runID)
	}
	return ret, err
}

// Wait blocks until the run status is terminal and returns its snapshot
func (s *Service) Wait(ctx context.Context, runID string) (*execution.Run, error) {
	if r := s.runner(runID); r != nil {
		select {
		case <-r.terminal:
			return r.snapshot.Load(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Run(ctx, runID)
}

// Active returns ids of runs with a live actor
func (s *Service) Active() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ret := make([]string, 0, len(s.runners))
	for id := range s.runners {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}

// Close cancels every active run and waits for their actors to exit
func (s *Service) Close(ctx context.Context) error {
	for _, id := range s.Active() {
		if err := s.Cancel(ctx, id, "scheduler shutdown"); err != nil && !errors.Is(err, ErrRunFinished) {
			log.Printf("scheduler: failed to cancel run %v: %v", id, err)
		}
	}
	for _, id := range s.Active() {
		r := s.runner(id)
		if r == nil {
			continue
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) publishTransition(ctx *event.Context, data event.TaskTransition) {
	if s.transitions == nil {
		return
	}
	if err := s.transitions.Publish(context.Background(), event.NewEvent(ctx, data)); err != nil {
		log.Printf("scheduler: failed to publish transition of %v/%v: %v", ctx.RunID, ctx.TaskID, err)
	}
}

func (s *Service) publishStatus(ctx *event.Context, data event.RunStatus) {
	if s.statuses == nil {
		return
	}
	if err := s.statuses.Publish(context.Background(), event.NewEvent(ctx, data)); err != nil {
		log.Printf("scheduler: failed to publish status of %v: %v", ctx.RunID, err)
	}
}

// New creates a scheduler
func New(cache Cache, dispatcher Dispatcher, opts ...Option) (*Service, error) {
	ret := &Service{cache: cache, dispatcher: dispatcher, runners: map[string]*runner{}}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.engine == nil {
		ret.engine = fingerprint.New()
	}
	if ret.runDAO == nil {
		ret.runDAO = rundao.NewMemory()
	}
	if ret.events != nil {
		var err error
		if ret.transitions, err = event.PublisherOf[event.TaskTransition](ret.events); err != nil {
			return nil, err
		}
		if ret.statuses, err = event.PublisherOf[event.RunStatus](ret.events); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func startSpan(ctx context.Context, aRun *execution.Run) (context.Context, *tracing.Span) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Run", tracing.KindInternal)
	span.WithAttributes(map[string]string{tracing.AttrRunID: aRun.ID, tracing.AttrWorkflow: aRun.Workflow})
	return ctx, span
}
