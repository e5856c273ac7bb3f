package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/viant/geoflow/internal/clock"
	"github.com/viant/geoflow/internal/idgen"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/runtime/correlation"
	"github.com/viant/geoflow/service/messaging"
	"github.com/viant/geoflow/service/protocol"
	"github.com/viant/geoflow/tracing"
	"golang.org/x/sync/errgroup"
)

// Completer records terminal outcomes keyed by fingerprint
type Completer interface {
	Complete(ctx context.Context, fingerprint string, descriptor *output.Descriptor) error
	Fail(ctx context.Context, fingerprint string, record *types.ErrorRecord) error
}

// Callbacks observe one dispatch. They are invoked from dispatcher goroutines.
type Callbacks struct {
	OnAttempt func(attempt int, attemptID string)
	OnAck     func()
	OnDone    func(descriptor *output.Descriptor, err error)
}

// Service dispatches execution requests and awaits their responses
type Service struct {
	config    Config
	requests  messaging.Queue[protocol.Request]
	responses messaging.Queue[protocol.Response]
	registry  *correlation.Registry[*protocol.Response]
	completer Completer
	active    sync.Map
	counters  counters
	wg        sync.WaitGroup
}

// Dispatch starts asynchronous execution of request. Cancelling ctx stops retries;
// an attempt already sent keeps being awaited until its timeout so that a late
// success is still recorded.
func (s *Service) Dispatch(ctx context.Context, request *protocol.Request, callbacks Callbacks) error {
	if request.CorrelationID == "" {
		request.CorrelationID = protocol.CorrelationID(request.RunID, request.TaskID)
	}
	if _, loaded := s.active.LoadOrStore(request.CorrelationID, true); loaded {
		return fmt.Errorf("request %v is already being dispatched", request.CorrelationID)
	}
	s.counters.dispatched.Add(1)
	s.counters.inflight.Add(1)
	s.wg.Add(1)
	go s.run(ctx, *request, callbacks)
	return nil
}

func (s *Service) run(ctx context.Context, request protocol.Request, callbacks Callbacks) {
	defer s.wg.Done()
	defer s.counters.inflight.Add(-1)
	defer s.active.Delete(request.CorrelationID)

	spanCtx, span := tracing.StartSpan(context.WithoutCancel(ctx), "dispatcher.Dispatch", tracing.KindProducer)
	span.WithAttributes(map[string]string{
		tracing.AttrCorrelationID: request.CorrelationID,
		tracing.AttrOperation:     request.OperationKey(),
		tracing.AttrFingerprint:   request.Fingerprint,
	})

	var descriptor *output.Descriptor
	attempt := 0
	operation := func() error {
		if attempt > 0 {
			s.counters.retries.Add(1)
		}
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		result, err := s.attempt(ctx, &request, attempt, callbacks)
		if err == nil {
			descriptor = result
		}
		span.AddEvent("attempt", map[string]string{"attempt": fmt.Sprint(attempt), "id": request.AttemptID})
		return err
	}
	var policy backoff.BackOff = backoff.NewConstantBackOff(s.config.RetryDelay)
	if s.config.MaxRetries != Unlimited {
		policy = backoff.WithMaxRetries(policy, uint64(s.config.MaxRetries))
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		log.Printf("dispatcher: %v attempt %d failed: %v, retrying in %v", request.CorrelationID, attempt, err, wait)
	})
	s.finish(spanCtx, &request, descriptor, err, callbacks)
	tracing.EndSpan(span, err)
}

// attempt publishes one request and awaits its terminal response or timeout
func (s *Service) attempt(ctx context.Context, request *protocol.Request, n int, callbacks Callbacks) (*output.Descriptor, error) {
	call, err := s.registry.Open(request.CorrelationID)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	request.Attempt = n
	request.AttemptID = idgen.NewAttempt()
	request.IssuedAt = clock.Now()
	s.registry.Attempt(call, request.AttemptID)
	s.counters.attempts.Add(1)
	if callbacks.OnAttempt != nil {
		callbacks.OnAttempt(n, request.AttemptID)
	}
	if err = s.requests.Publish(ctx, request); err != nil {
		s.registry.Close(request.CorrelationID)
		return nil, s.retryable(ctx, &types.TransportError{Err: err})
	}

	timer := time.NewTimer(s.config.Timeout)
	defer timer.Stop()
	acked := call.Acked()
	cancelled := ctx.Done()
	for {
		select {
		case <-acked:
			acked = nil
			if callbacks.OnAck != nil {
				callbacks.OnAck()
			}
		case <-cancelled:
			cancelled = nil
			log.Printf("dispatcher: %v cancelled, awaiting attempt %v", request.CorrelationID, request.AttemptID)
		case response := <-call.Result():
			return s.outcome(ctx, request, response)
		case <-timer.C:
			s.registry.Close(request.CorrelationID)
			select {
			case response := <-call.Result():
				return s.outcome(ctx, request, response)
			default:
			}
			s.counters.timeouts.Add(1)
			timeout := &types.TimeoutError{CorrelationID: request.CorrelationID, After: s.config.Timeout}
			if !s.config.RetryTimeouts {
				return nil, backoff.Permanent(timeout)
			}
			return nil, s.retryable(ctx, timeout)
		}
	}
}

func (s *Service) outcome(ctx context.Context, request *protocol.Request, response *protocol.Response) (*output.Descriptor, error) {
	if response.Type == protocol.ResponseSuccess {
		if response.Descriptor == nil {
			return nil, backoff.Permanent(&types.OperationError{Operation: request.OperationKey(), Message: "success response without descriptor"})
		}
		return response.Descriptor, nil
	}
	record := response.Error
	if record == nil {
		record = &types.ErrorRecord{Kind: types.ErrorKindOperation, Message: "failure response without error"}
	}
	err := record.Err()
	if types.IsRetryable(err) {
		return nil, s.retryable(ctx, err)
	}
	if record.Kind == types.ErrorKindOperation {
		return nil, backoff.Permanent(&types.OperationError{Operation: request.OperationKey(), Message: record.Message})
	}
	return nil, backoff.Permanent(err)
}

// retryable returns err for another attempt unless the dispatch was cancelled
func (s *Service) retryable(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(&types.ErrorRecord{Kind: types.ErrorKindCancelled, Message: "retry abandoned after cancellation: " + err.Error()})
	}
	return err
}

func (s *Service) finish(ctx context.Context, request *protocol.Request, descriptor *output.Descriptor, err error, callbacks Callbacks) {
	if err == nil {
		s.counters.succeeded.Add(1)
		if descriptor.Fingerprint == "" {
			descriptor.Fingerprint = request.Fingerprint
		}
		if descriptor.Operation == "" {
			descriptor.Operation, descriptor.Version = request.Operation, request.Version
		}
		if descriptor.CreatedAt.IsZero() {
			descriptor.CreatedAt = clock.Now()
		}
		if s.completer != nil {
			if cErr := s.completer.Complete(ctx, request.Fingerprint, descriptor); cErr != nil {
				log.Printf("dispatcher: failed to record result of %v: %v", request.CorrelationID, cErr)
				err = cErr
			}
		}
	} else {
		s.counters.failed.Add(1)
		record := types.RecordOf(err).WithTask(request.TaskID)
		if s.completer != nil {
			if cErr := s.completer.Fail(ctx, request.Fingerprint, record); cErr != nil {
				log.Printf("dispatcher: failed to record failure of %v: %v", request.CorrelationID, cErr)
			}
		}
	}
	if callbacks.OnDone != nil {
		callbacks.OnDone(descriptor, err)
	}
}

// Deliver hands a worker response to the awaiting dispatch; duplicates are dropped
func (s *Service) Deliver(response *protocol.Response) correlation.Outcome {
	switch response.Type {
	case protocol.ResponseAck:
		return s.registry.Ack(response.CorrelationID, response.AttemptID)
	case protocol.ResponseSuccess, protocol.ResponseFailure:
		copied := *response
		var outcome correlation.Outcome
		if response.Type == protocol.ResponseSuccess {
			// a result computed by an earlier attempt is still valid
			outcome = s.registry.ResolveAny(response.CorrelationID, &copied)
		} else {
			outcome = s.registry.Resolve(response.CorrelationID, response.AttemptID, &copied)
		}
		switch outcome {
		case correlation.Duplicate:
			s.counters.duplicates.Add(1)
		case correlation.Unknown:
			s.counters.unknown.Add(1)
			log.Printf("dispatcher: dropping response for unknown request %v", response.CorrelationID)
		}
		return outcome
	}
	log.Printf("dispatcher: unsupported response type %q for %v", response.Type, response.CorrelationID)
	return correlation.Unknown
}

// Run consumes worker responses until ctx is done
func (s *Service) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.consume(ctx)
	})
	group.Go(func() error {
		interval := s.config.DedupeWindow / 4
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.registry.Prune()
			}
		}
	})
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) consume(ctx context.Context) error {
	for {
		message, err := s.responses.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("dispatcher: failed to consume response: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if message == nil {
			continue
		}
		s.Deliver(message.T())
		if err = message.Ack(); err != nil {
			log.Printf("dispatcher: failed to ack response: %v", err)
		}
	}
}

// Drain waits for every dispatch, including detached ones, to finish
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns dispatcher counters
func (s *Service) Stats() Stats {
	ret := s.counters.snapshot()
	ret.Pending = s.registry.Pending()
	return ret
}

// Config returns the resiliency policy in use
func (s *Service) Config() Config {
	return s.config
}

// New creates a dispatcher publishing to requests and consuming responses
func New(requests messaging.Queue[protocol.Request], responses messaging.Queue[protocol.Response], opts ...Option) *Service {
	ret := &Service{config: DefaultConfig(), requests: requests, responses: responses}
	for _, opt := range opts {
		opt(ret)
	}
	window := ret.config.DedupeWindow
	if window <= 0 {
		window = DefaultConfig().DedupeWindow
	}
	ret.registry = correlation.NewRegistry[*protocol.Response](window)
	return ret
}
