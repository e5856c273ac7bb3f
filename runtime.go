package geoflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/plan"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/asset"
	"github.com/viant/geoflow/service/cache"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/dao/workflow"
	"github.com/viant/geoflow/service/dispatcher"
	"github.com/viant/geoflow/service/fingerprint"
	"github.com/viant/geoflow/service/messaging"
	"github.com/viant/geoflow/service/protocol"
	"github.com/viant/geoflow/service/resolver"
	"github.com/viant/geoflow/service/scheduler"
	"github.com/viant/geoflow/service/worker"
	"github.com/viant/geoflow/tracing"
	"golang.org/x/sync/errgroup"
)

// Runtime represents a workflow engine runtime
type Runtime struct {
	workflowDAO *workflow.Service
	resolver    *resolver.Service
	engine      *fingerprint.Engine
	cache       *cache.Service
	dispatcher  *dispatcher.Service
	scheduler   *scheduler.Service
	worker      *worker.Service
	assets      *asset.Service
	runDAO      dao.Service[string, execution.Run]
	requests    messaging.Queue[protocol.Request]
	responses   messaging.Queue[protocol.Response]

	mux    sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Metrics reports system level counters
type Metrics struct {
	Runs       map[execution.RunStatus]int `json:"runs"`
	Active     int                         `json:"active"`
	Cache      cache.Stats                 `json:"cache"`
	Dispatcher dispatcher.Stats            `json:"dispatcher"`
	Queues     QueueMetrics                `json:"queues"`
	Worker     *worker.Stats               `json:"worker,omitempty"`
}

// QueueMetrics reports worker protocol backlogs; -1 means the queue cannot report its size
type QueueMetrics struct {
	Requests  int `json:"requests"`
	Responses int `json:"responses"`
}

// LoadWorkflow loads a workflow from URL
func (r *Runtime) LoadWorkflow(ctx context.Context, URL string) (*model.Workflow, error) {
	return r.workflowDAO.Load(ctx, URL)
}

// DecodeYAMLWorkflow decodes a workflow document
func (r *Runtime) DecodeYAMLWorkflow(data []byte) (*model.Workflow, error) {
	return r.workflowDAO.DecodeYAML(data)
}

// Workflow returns a workflow by name
func (r *Runtime) Workflow(ctx context.Context, name string) (*model.Workflow, error) {
	return r.workflowDAO.Lookup(ctx, name)
}

// Workflows lists resolvable workflow names
func (r *Runtime) Workflows(ctx context.Context) ([]string, error) {
	return r.workflowDAO.List(ctx)
}

// RegisterWorkflow makes a definition resolvable by name
func (r *Runtime) RegisterWorkflow(aWorkflow *model.Workflow) error {
	return r.workflowDAO.Register(aWorkflow)
}

// Resolve flattens a workflow into an executable plan
func (r *Runtime) Resolve(ctx context.Context, aWorkflow *model.Workflow) (*plan.Plan, error) {
	return r.resolver.Resolve(ctx, aWorkflow)
}

// Submit starts a run of the named workflow
func (r *Runtime) Submit(ctx context.Context, name string, inputs, parameters map[string]interface{}) (*execution.Run, error) {
	aWorkflow, err := r.workflowDAO.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.SubmitWorkflow(ctx, aWorkflow, inputs, parameters)
}

// SubmitWorkflow resolves the definition and starts a run
func (r *Runtime) SubmitWorkflow(ctx context.Context, aWorkflow *model.Workflow, inputs, parameters map[string]interface{}) (run *execution.Run, err error) {
	ctx, span := tracing.StartSpan(ctx, "runtime.Submit", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	if aWorkflow != nil {
		span.WithAttributes(map[string]string{tracing.AttrWorkflow: aWorkflow.Name})
	}
	aPlan, err := r.resolver.Resolve(ctx, aWorkflow)
	if err != nil {
		return nil, err
	}
	return r.scheduler.Submit(ctx, aWorkflow, aPlan, inputs, parameters)
}

// Resubmit starts a new run with the definition, inputs and parameters of an existing one
func (r *Runtime) Resubmit(ctx context.Context, runID string) (*execution.Run, error) {
	previous, err := r.scheduler.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	aWorkflow := previous.Definition
	if aWorkflow == nil {
		if aWorkflow, err = r.workflowDAO.Lookup(ctx, previous.Workflow); err != nil {
			return nil, fmt.Errorf("failed to resubmit %v: %w", runID, err)
		}
	}
	return r.SubmitWorkflow(ctx, aWorkflow, previous.Inputs, previous.Parameters)
}

// Cancel cooperatively cancels a run
func (r *Runtime) Cancel(ctx context.Context, runID, reason string) error {
	return r.scheduler.Cancel(ctx, runID, reason)
}

// Run returns a run snapshot
func (r *Runtime) Run(ctx context.Context, runID string) (*execution.Run, error) {
	return r.scheduler.Run(ctx, runID)
}

// Tasks returns task states of a run in topological order
func (r *Runtime) Tasks(ctx context.Context, runID string) ([]*execution.TaskExecution, error) {
	run, err := r.scheduler.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run.TaskList(), nil
}

// Runs lists runs; empty ids or statuses match any
func (r *Runtime) Runs(ctx context.Context, ids []string, statuses ...execution.RunStatus) ([]*execution.Run, error) {
	var parameters []*dao.Parameter
	if len(ids) > 0 {
		parameters = append(parameters, dao.NewParameter(dao.ParamIDs, ids...))
	}
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}
		parameters = append(parameters, dao.NewParameter(dao.ParamStatus, values...))
	}
	return r.runDAO.List(ctx, parameters...)
}

// Wait blocks until the run is terminal
func (r *Runtime) Wait(ctx context.Context, runID string) (*execution.Run, error) {
	return r.scheduler.Wait(ctx, runID)
}

// WaitTimeout waits up to timeout for the run to become terminal
func (r *Runtime) WaitTimeout(ctx context.Context, runID string, timeout time.Duration) (*execution.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.scheduler.Wait(ctx, runID)
}

// Invalidate removes a cached result
func (r *Runtime) Invalidate(ctx context.Context, fingerprint string) error {
	return r.cache.Invalidate(ctx, fingerprint)
}

// Purge removes cached results created before olderThan
func (r *Runtime) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	return r.cache.Purge(ctx, olderThan)
}

// Worker returns the local worker or nil when disabled
func (r *Runtime) Worker() *worker.Service {
	return r.worker
}

// Assets returns the asset store
func (r *Runtime) Assets() *asset.Service {
	return r.assets
}

// Metrics returns run, cache, dispatcher, queue and worker counters
func (r *Runtime) Metrics(ctx context.Context) (*Metrics, error) {
	runs, err := r.runDAO.List(ctx)
	if err != nil {
		return nil, err
	}
	ret := &Metrics{
		Runs:       map[execution.RunStatus]int{},
		Active:     len(r.scheduler.Active()),
		Cache:      r.cache.Stats(),
		Dispatcher: r.dispatcher.Stats(),
		Queues:     QueueMetrics{Requests: sizeOf(r.requests), Responses: sizeOf(r.responses)},
	}
	for _, run := range runs {
		ret.Runs[run.Status]++
	}
	if r.worker != nil {
		stats := r.worker.Stats()
		ret.Worker = &stats
	}
	return ret, nil
}

func sizeOf(queue interface{}) int {
	if sizer, ok := queue.(messaging.Sizer); ok {
		return sizer.Size()
	}
	return -1
}

// Start starts the response consumer and the local worker
func (r *Runtime) Start(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.group != nil {
		return fmt.Errorf("runtime already started")
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.group, ctx = errgroup.WithContext(ctx)
	r.group.Go(func() error { return r.dispatcher.Run(ctx) })
	if r.worker != nil {
		r.group.Go(func() error { return r.worker.Run(ctx) })
	}
	return nil
}

// Shutdown cancels active runs, stops consumers and waits for them to exit
func (r *Runtime) Shutdown(ctx context.Context) error {
	err := r.scheduler.Close(ctx)
	r.mux.Lock()
	cancel, group := r.cancel, r.group
	r.cancel, r.group = nil, nil
	r.mux.Unlock()
	if cancel == nil {
		return err
	}
	cancel()
	if gErr := group.Wait(); gErr != nil && err == nil {
		err = gErr
	}
	return err
}
