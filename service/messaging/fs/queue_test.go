package fs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

type response struct {
	CorrelationID string `json:"correlationId"`
	Type          string `json:"type"`
}

func newTestQueue(t *testing.T, maxRetries int) (*Queue[response], QueueConfig) {
	t.Helper()
	config := QueueConfig{
		BasePath:     t.TempDir(),
		MaxRetries:   maxRetries,
		RetryDelay:   10 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
	queue, err := NewQueue[response](context.Background(), afs.New(), config)
	require.NoError(t, err)
	return queue, config
}

func TestQueue_FIFO(t *testing.T) {
	queue, _ := newTestQueue(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, id := range []string{"run/a", "run/b", "run/c"} {
		require.NoError(t, queue.Publish(ctx, &response{CorrelationID: id, Type: "ack"}))
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 3, queue.Size())

	for _, expect := range []string{"run/a", "run/b", "run/c"} {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, expect, message.T().CorrelationID)
		require.NoError(t, message.Ack())
		assert.Error(t, message.Ack())
	}
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ConsumeBlocksUntilDeadline(t *testing.T) {
	queue, _ := newTestQueue(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	message, err := queue.Consume(ctx)
	assert.Nil(t, message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_NackRedeliversThenDeadLetters(t *testing.T) {
	queue, _ := newTestQueue(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &response{CorrelationID: "run/x", Type: "success"}))

	first, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Nack(errors.New("scheduler busy")))

	second, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run/x", second.T().CorrelationID)
	assert.Equal(t, 1, second.(*Message[response]).Retries)
	require.NoError(t, second.Nack(errors.New("scheduler busy")))

	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueue_RecoversInflightMessages(t *testing.T) {
	queue, config := newTestQueue(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &response{CorrelationID: "run/y", Type: "ack"}))
	_, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())

	reopened, err := NewQueue[response](ctx, afs.New(), config)
	require.NoError(t, err)
	message, err := reopened.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run/y", message.T().CorrelationID)
}
