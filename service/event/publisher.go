package event

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/viant/geoflow/internal/clock"
	"github.com/viant/geoflow/service/messaging"
)

// Publisher sends typed events. Events are queued only once a listener is attached,
// so an unobserved publisher never fills its queue.
type Publisher[T any] struct {
	queue    messaging.Queue[Event[T]]
	anyQueue func() messaging.Queue[Event[any]]
	listened atomic.Bool
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

// Publish stamps the event and sends it to the typed queue and the catch-all queue
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = clock.Now()
	if p.anyQueue != nil {
		if anyQueue := p.anyQueue(); anyQueue != nil {
			if err := anyQueue.Publish(ctx, &Event[any]{
				Context:   event.Context,
				CreatedAt: event.CreatedAt,
				Metadata:  event.Metadata,
				Data:      event.Data,
			}); err != nil {
				log.Printf("event: failed to publish %v to catch-all queue: %v", event.Context.EventType, err)
			}
		}
	}
	if !p.listened.Load() {
		return nil
	}
	return p.queue.Publish(ctx, event)
}

func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
