package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/geoflow/service/messaging"
)

func TestService_TypedListener(t *testing.T) {
	srv, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer srv.Close()
	ctx := context.Background()

	received := make(chan *Event[TaskTransition], 4)
	require.NoError(t, SetListenerOf[TaskTransition](ctx, srv, func(e *Event[TaskTransition]) {
		received <- e
	}))

	publisher, err := PublisherOf[TaskTransition](srv)
	require.NoError(t, err)
	same, err := PublisherOf[TaskTransition](srv)
	require.NoError(t, err)
	assert.Same(t, publisher, same)

	require.NoError(t, publisher.Publish(ctx, NewEvent(&Context{RunID: "r1", TaskID: "ndvi", EventType: TypeTaskTransition},
		TaskTransition{From: "ready", To: "dispatched"})))

	select {
	case e := <-received:
		assert.Equal(t, "ndvi", e.Context.TaskID)
		assert.Equal(t, "dispatched", e.Data.To)
		assert.False(t, e.CreatedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestService_CatchAllListener(t *testing.T) {
	srv, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer srv.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var types []string
	done := make(chan struct{}, 2)
	srv.SetListener(ctx, func(e *Event[any]) {
		mu.Lock()
		types = append(types, e.Context.EventType)
		mu.Unlock()
		done <- struct{}{}
	})

	tasks, err := PublisherOf[TaskTransition](srv)
	require.NoError(t, err)
	runs, err := PublisherOf[RunStatus](srv)
	require.NoError(t, err)
	require.NoError(t, tasks.Publish(ctx, NewEvent(&Context{RunID: "r1", EventType: TypeTaskTransition}, TaskTransition{To: "running"})))
	require.NoError(t, runs.Publish(ctx, NewEvent(&Context{RunID: "r1", EventType: TypeRunStatus}, RunStatus{To: "succeeded"})))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{TypeTaskTransition, TypeRunStatus}, types)
}

func TestPublisher_UnobservedEventsAreDropped(t *testing.T) {
	srv, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	publisher, err := PublisherOf[RunStatus](srv)
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		require.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{RunID: "r"}, RunStatus{To: "running"})))
	}
}

func TestNew_UnsupportedVendor(t *testing.T) {
	_, err := New("kafka")
	assert.Error(t, err)
}
