package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"github.com/viant/geoflow/internal/clock"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/service/asset"
	"github.com/viant/geoflow/service/messaging"
	"github.com/viant/geoflow/service/protocol"
	"github.com/viant/geoflow/tracing"
)

// Stats reports worker counters
type Stats struct {
	Received  int64 `json:"received"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
	Active    int64 `json:"active"`
}

// Service consumes execution requests and publishes responses
type Service struct {
	config    Config
	requests  messaging.Queue[protocol.Request]
	responses messaging.Queue[protocol.Response]
	registry  *Registry
	assets    *asset.Service

	received, succeeded, failed, panicked, active atomic.Int64
}

// Registry returns the operation registry
func (s *Service) Registry() *Registry {
	return s.registry
}

// Run consumes requests until ctx is done, then waits for executing operations
func (s *Service) Run(ctx context.Context) error {
	workers := pool.New().WithMaxGoroutines(s.config.Concurrency)
	defer workers.Wait()
	for {
		message, err := s.requests.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("worker %v: failed to consume request: %v", s.config.ID, err)
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
		s.received.Add(1)
		workers.Go(func() {
			s.handle(ctx, message)
		})
	}
}

func (s *Service) handle(ctx context.Context, message messaging.Message[protocol.Request]) {
	request := message.T()
	s.active.Add(1)
	defer s.active.Add(-1)

	if err := s.responses.Publish(ctx, protocol.NewAck(request, s.config.ID)); err != nil {
		log.Printf("worker %v: failed to ack %v: %v", s.config.ID, request.CorrelationID, err)
	}
	descriptor, err := s.Execute(ctx, request)
	if err != nil && ctx.Err() != nil {
		// shutting down: hand the request back for redelivery
		if nErr := message.Nack(err); nErr != nil {
			log.Printf("worker %v: failed to nack %v: %v", s.config.ID, request.CorrelationID, nErr)
		}
		return
	}
	var response *protocol.Response
	if err != nil {
		s.failed.Add(1)
		response = protocol.NewFailure(request, s.config.ID, types.RecordOf(err).WithTask(request.TaskID))
	} else {
		s.succeeded.Add(1)
		response = protocol.NewSuccess(request, s.config.ID, descriptor)
	}
	if err = s.responses.Publish(context.Background(), response); err != nil {
		log.Printf("worker %v: failed to respond to %v: %v", s.config.ID, request.CorrelationID, err)
		_ = message.Nack(err)
		return
	}
	if err = message.Ack(); err != nil {
		log.Printf("worker %v: failed to ack message %v: %v", s.config.ID, request.CorrelationID, err)
	}
}

// Execute runs the requested operation. Panics are reported as operation errors.
func (s *Service) Execute(ctx context.Context, request *protocol.Request) (descriptor *output.Descriptor, err error) {
	ctx, span := tracing.StartSpan(ctx, "worker.Execute", tracing.KindConsumer)
	span.WithAttributes(map[string]string{tracing.AttrOperation: request.OperationKey(), tracing.AttrCorrelationID: request.CorrelationID})
	defer func() { tracing.EndSpan(span, err) }()

	operation, ok := s.registry.Lookup(request.Operation, request.Version)
	if !ok {
		return nil, &types.OperationError{Operation: request.OperationKey(), Message: "operation is not registered"}
	}
	var result *Result
	var catcher panics.Catcher
	catcher.Try(func() {
		result, err = operation.Execute(ctx, &Invocation{Request: request, Assets: s.assets})
	})
	if recovered := catcher.Recovered(); recovered != nil {
		s.panicked.Add(1)
		log.Printf("worker %v: %v panicked: %v", s.config.ID, request.OperationKey(), recovered.Value)
		return nil, &types.OperationError{Operation: request.OperationKey(), Message: fmt.Sprintf("panic: %v", recovered.Value)}
	}
	if err != nil {
		var operationErr *types.OperationError
		if errors.As(err, &operationErr) && operationErr.Operation == "" {
			operationErr.Operation = request.OperationKey()
		}
		return nil, err
	}
	if result == nil {
		result = &Result{}
	}
	return &output.Descriptor{
		Fingerprint: request.Fingerprint,
		Operation:   request.Operation,
		Version:     request.Version,
		Outputs:     result.Outputs,
		Assets:      result.Assets,
		CreatedAt:   clock.Now(),
	}, nil
}

// Stats returns worker counters
func (s *Service) Stats() Stats {
	return Stats{
		Received:  s.received.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Panics:    s.panicked.Load(),
		Active:    s.active.Load(),
	}
}

// New creates a local worker
func New(requests messaging.Queue[protocol.Request], responses messaging.Queue[protocol.Response], opts ...Option) *Service {
	ret := &Service{config: DefaultConfig(), requests: requests, responses: responses}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.registry == nil {
		ret.registry = NewRegistry()
	}
	if ret.config.Concurrency <= 0 {
		ret.config.Concurrency = DefaultConfig().Concurrency
	}
	return ret
}
