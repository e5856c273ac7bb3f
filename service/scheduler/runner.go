package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/viant/geoflow/internal/clock"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/plan"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/progress"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/cache"
	"github.com/viant/geoflow/service/dispatcher"
	"github.com/viant/geoflow/service/event"
	"github.com/viant/geoflow/service/protocol"
	"github.com/viant/geoflow/tracing"
)

type messageKind int

const (
	messageResolved messageKind = iota + 1
	messageAcked
	messageAttempt
	messageCancel
	messageAbort
)

// message is the only way to mutate a run once its actor started
type message struct {
	kind    messageKind
	taskID  string
	handle  *cache.Handle
	attempt int
	reason  string
	record  *types.ErrorRecord
	reply   chan error
}

// runner is the actor owning one run
type runner struct {
	service *Service
	plan    *plan.Plan
	run     *execution.Run

	remaining map[string]int
	handles   map[string]*cache.Handle
	progress  *progress.Progress

	ctx    context.Context
	cancel context.CancelFunc
	span   *tracing.Span

	inbox        chan message
	done         chan struct{}
	terminal     chan struct{}
	terminalOnce sync.Once
	snapshot     atomic.Pointer[execution.Run]
}

func newRunner(s *Service, parent context.Context, aRun *execution.Run, aPlan *plan.Plan) *runner {
	ret := &runner{
		service:   s,
		plan:      aPlan,
		run:       aRun,
		remaining: make(map[string]int, len(aPlan.Nodes)),
		handles:   map[string]*cache.Handle{},
		progress:  progress.New(aRun.ID, aRun.Workflow, len(aPlan.Nodes), nil),
		inbox:     make(chan message, 64),
		done:      make(chan struct{}),
		terminal:  make(chan struct{}),
	}
	for id, node := range aPlan.Nodes {
		ret.remaining[id] = len(node.Upstream)
	}
	parent, ret.span = startSpan(parent, aRun)
	ret.ctx, ret.cancel = context.WithCancel(parent)
	ret.publish()
	return ret
}

func (r *runner) loop() {
	defer r.service.release(r.run.ID)
	defer close(r.done)
	defer r.cancel()

	now := clock.Now()
	r.run.Details.StartedAt = &now
	r.setStatus(execution.RunStatusRunning, "")
	r.advance()
	r.settle()
	r.persist()
	for !r.finished() {
		msg := <-r.inbox
		r.apply(msg)
		r.advance()
		r.settle()
		r.persist()
	}
}

// send enqueues msg unless the actor already exited
func (r *runner) send(msg message) bool {
	select {
	case r.inbox <- msg:
		return true
	case <-r.done:
		return false
	}
}

func (r *runner) apply(msg message) {
	task := r.run.Tasks[msg.taskID]
	switch msg.kind {
	case messageCancel:
		r.cancelRun(msg.reason)
		if msg.reply != nil {
			msg.reply <- nil
		}
	case messageAbort:
		if handle := r.handles[msg.taskID]; handle != nil {
			select {
			case <-handle.Done():
				// settle the completion that was accepted before the rejected one
				r.apply(message{kind: messageResolved, taskID: msg.taskID, handle: handle})
			default:
			}
		}
		r.failRun(msg.record)
	case messageAttempt:
		if task != nil && !task.State.IsTerminal() {
			task.Attempts = msg.attempt
		}
	case messageAcked:
		if task != nil && task.State == execution.TaskStateDispatched {
			r.transition(task, execution.TaskStateRunning, "acknowledged by worker")
		}
	case messageResolved:
		if task == nil || task.State.IsTerminal() || r.handles[msg.taskID] != msg.handle {
			return
		}
		delete(r.handles, msg.taskID)
		descriptor, failure := msg.handle.Result()
		if failure == nil {
			reason := "completed"
			if task.Shared {
				reason = "completed by shared execution"
			}
			r.succeed(task, descriptor, reason)
			return
		}
		if failure.Kind == types.ErrorKindCancelled && task.State == execution.TaskStateReady && r.run.Status == execution.RunStatusRunning {
			// the reserving caller gave up, this run takes over
			r.reserve(task)
			return
		}
		r.fail(task, failure.WithTask(task.TaskID))
	}
}

// advance moves every pending task with satisfied dependencies to ready, in plan order
func (r *runner) advance() {
	for progressed := true; progressed; {
		progressed = false
		for _, id := range r.plan.Order {
			if r.run.Status != execution.RunStatusRunning {
				return
			}
			task := r.run.Tasks[id]
			if task.State != execution.TaskStatePending || r.remaining[id] > 0 {
				continue
			}
			r.transition(task, execution.TaskStateReady, "dependencies succeeded")
			r.reserve(task)
			progressed = true
		}
	}
}

// reserve consults the cache for a ready task
func (r *runner) reserve(task *execution.TaskExecution) {
	node := r.plan.Node(task.TaskID)
	fp, inputs, err := r.bind(node)
	if err != nil {
		r.fail(task, &types.ErrorRecord{Kind: types.ErrorKindDefinition, Message: err.Error(), TaskID: task.TaskID})
		return
	}
	task.Fingerprint = fp
	lookup, err := r.service.cache.LookupOrReserve(r.ctx, fp)
	if err != nil {
		r.fail(task, &types.ErrorRecord{Kind: types.ErrorKindCache, Message: err.Error(), TaskID: task.TaskID})
		return
	}
	switch lookup.Status {
	case cache.StatusHit:
		task.Cached = true
		r.progress.Update(progress.Delta{CacheHits: 1})
		r.succeed(task, lookup.Descriptor, "cache hit")
	case cache.StatusWait:
		task.Shared = true
		r.await(task.TaskID, lookup.Handle)
		r.span.AddEvent("shared", map[string]string{"task": task.TaskID, "fingerprint": fp})
	case cache.StatusReserved:
		task.Shared = false
		r.await(task.TaskID, lookup.Handle)
		r.transition(task, execution.TaskStateDispatched, "")
		request := &protocol.Request{
			RunID:       r.run.ID,
			TaskID:      task.TaskID,
			Operation:   node.Operation,
			Version:     node.Version,
			Fingerprint: fp,
			Inputs:      inputs,
		}
		taskID := task.TaskID
		err = r.service.dispatcher.Dispatch(r.ctx, request, dispatcher.Callbacks{
			OnAttempt: func(attempt int, attemptID string) {
				r.send(message{kind: messageAttempt, taskID: taskID, attempt: attempt})
			},
			OnAck: func() {
				r.send(message{kind: messageAcked, taskID: taskID})
			},
			OnDone: func(_ *output.Descriptor, err error) {
				var double *types.DoubleCompletionError
				if errors.As(err, &double) {
					r.send(message{kind: messageAbort, taskID: taskID, record: types.RecordOf(err).WithTask(taskID)})
				}
			},
		})
		if err != nil {
			record := &types.ErrorRecord{Kind: types.ErrorKindTransport, Message: err.Error()}
			if fErr := r.service.cache.Fail(context.Background(), fp, record); fErr != nil {
				log.Printf("scheduler: failed to release reservation %v: %v", fp, fErr)
			}
		}
	}
}

// await resumes the actor once the reservation behind handle resolves
func (r *runner) await(taskID string, handle *cache.Handle) {
	r.handles[taskID] = handle
	go func() {
		select {
		case <-handle.Done():
			r.send(message{kind: messageResolved, taskID: taskID, handle: handle})
		case <-r.done:
		}
	}()
}

func (r *runner) succeed(task *execution.TaskExecution, descriptor *output.Descriptor, reason string) {
	task.Output = descriptor
	if !r.transition(task, execution.TaskStateSucceeded, reason) {
		return
	}
	node := r.plan.Node(task.TaskID)
	for _, downstream := range node.Downstream {
		r.remaining[downstream]--
	}
	for _, name := range r.plan.SinkNames() {
		ref := r.plan.Sinks[name]
		if ref.Task != task.TaskID {
			continue
		}
		value, ok := descriptor.Port(ref.Port)
		if !ok {
			log.Printf("scheduler: run %v: task %v produced no %q output for sink %v", r.run.ID, task.TaskID, ref.Port, name)
		}
		r.run.Outputs[name] = value
	}
}

// fail marks task failed and cancels its descendants; the run fails when a required task is affected
func (r *runner) fail(task *execution.TaskExecution, record *types.ErrorRecord) {
	task.Error = record
	if !r.transition(task, execution.TaskStateFailed, record.Message) {
		return
	}
	required := !r.plan.Node(task.TaskID).Optional
	for _, id := range r.plan.Descendants(task.TaskID) {
		descendant := r.run.Tasks[id]
		if descendant.State.IsTerminal() {
			continue
		}
		r.transition(descendant, execution.TaskStateCancelled, fmt.Sprintf("upstream task %v failed", task.TaskID))
		if !r.plan.Node(id).Optional {
			required = true
		}
	}
	if required {
		r.failRun(record)
	}
}

// failRun fails the run and cancels tasks that did not start; dispatched tasks finish so their results get cached
func (r *runner) failRun(record *types.ErrorRecord) {
	if r.run.Status.IsTerminal() {
		return
	}
	r.run.Error = record
	for _, task := range r.run.TaskList() {
		switch task.State {
		case execution.TaskStatePending, execution.TaskStateReady:
			delete(r.handles, task.TaskID)
			r.transition(task, execution.TaskStateCancelled, "run failed")
		}
	}
	r.setStatus(execution.RunStatusFailed, record.Error())
}

func (r *runner) cancelRun(reason string) {
	if !r.run.Status.IsTerminal() {
		r.setStatus(execution.RunStatusCancelling, reason)
	}
	r.cancel()
	for _, task := range r.run.TaskList() {
		if !task.State.IsTerminal() {
			delete(r.handles, task.TaskID)
			r.transition(task, execution.TaskStateCancelled, reason)
		}
	}
	if r.run.Status == execution.RunStatusCancelling {
		r.setStatus(execution.RunStatusCancelled, reason)
	}
}

// settle completes a running run once every task is terminal
func (r *runner) settle() {
	if r.run.Status != execution.RunStatusRunning || !r.finished() {
		return
	}
	r.setStatus(execution.RunStatusSucceeded, "")
}

func (r *runner) finished() bool {
	for _, task := range r.run.Tasks {
		if !task.State.IsTerminal() {
			return false
		}
	}
	return true
}

func (r *runner) transition(task *execution.TaskExecution, to execution.TaskState, reason string) bool {
	from := task.State
	if err := task.Transition(to, clock.Now(), reason); err != nil {
		log.Printf("scheduler: run %v: %v", r.run.ID, err)
		return false
	}
	r.progress.Update(progress.Transition(string(from), string(to)))
	r.service.publishTransition(&event.Context{
		RunID:     r.run.ID,
		TaskID:    task.TaskID,
		Workflow:  r.run.Workflow,
		EventType: event.TypeTaskTransition,
	}, event.TaskTransition{
		From:        string(from),
		To:          string(to),
		Reason:      reason,
		Fingerprint: task.Fingerprint,
		Cached:      task.Cached,
		Shared:      task.Shared,
		Attempts:    task.Attempts,
	})
	return true
}

func (r *runner) setStatus(to execution.RunStatus, reason string) {
	from := r.run.Status
	r.run.Status = to
	if reason != "" {
		r.run.Details.Reason = reason
	}
	ctx := &event.Context{RunID: r.run.ID, Workflow: r.run.Workflow, EventType: event.TypeRunStatus}
	if to.IsTerminal() {
		now := clock.Now()
		r.run.Details.EndedAt = &now
		ctx.TimeTakenMs = int(now.Sub(r.run.Details.SubmittedAt).Milliseconds())
	}
	r.service.publishStatus(ctx, event.RunStatus{From: string(from), To: string(to)})
	if to.IsTerminal() {
		r.publish()
		r.terminalOnce.Do(func() {
			var err error
			if r.run.Error != nil {
				err = r.run.Error
			}
			r.span.WithAttributes(map[string]string{"run.status": string(to)})
			tracing.EndSpan(r.span, err)
			close(r.terminal)
		})
	}
}

// publish exposes a consistent snapshot to readers outside the actor
func (r *runner) publish() {
	r.run.Progress = r.progress.Snapshot()
	r.snapshot.Store(r.run.Clone())
}

func (r *runner) persist() {
	r.publish()
	if err := r.service.runDAO.Save(context.Background(), r.run); err != nil {
		log.Printf("scheduler: failed to save run %v: %v", r.run.ID, err)
	}
}
