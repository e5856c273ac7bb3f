package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/geoflow/service/messaging"
)

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateFailed     MessageState = "failed"
)

// Message implements messaging.Message for the filesystem queue
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	Retries   int          `json:"retries"`

	queue     *Queue[T]
	name      string
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the message from the spool
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.ID)
	}
	m.processed = true
	return m.queue.fs.Delete(context.Background(), url.Join(m.queue.inflightDir, m.name))
}

// Nack reschedules the message after RetryDelay, or moves it to the dead letter directory
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.ID)
	}
	m.processed = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	return m.queue.reschedule(context.Background(), m)
}

// QueueConfig holds configuration for filesystem queue
type QueueConfig struct {
	BasePath     string        `json:"basePath" yaml:"basePath"`
	MaxRetries   int           `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay   time.Duration `json:"retryDelay" yaml:"retryDelay"`
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() QueueConfig {
	return QueueConfig{
		BasePath:     "/tmp/geoflow/queue",
		MaxRetries:   3,
		RetryDelay:   time.Second,
		PollInterval: 50 * time.Millisecond,
	}
}

// Queue implements a filesystem spool based messaging.Queue.
// Messages are named <notBefore-unixnano>-<id>.json so that lexical order is delivery order.
type Queue[T any] struct {
	fs          afs.Service
	config      QueueConfig
	pendingDir  string
	inflightDir string
	dlqDir      string
	mu          sync.Mutex
}

// NewQueue creates a filesystem queue; messages left in flight by a previous process are redelivered
func NewQueue[T any](ctx context.Context, fs afs.Service, config QueueConfig) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	base := url.Normalize(config.BasePath, file.Scheme)
	q := &Queue[T]{
		fs:          fs,
		config:      config,
		pendingDir:  url.Join(base, "pending"),
		inflightDir: url.Join(base, "inflight"),
		dlqDir:      url.Join(base, "dlq"),
	}
	for _, dir := range []string{q.pendingDir, q.inflightDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	stale, err := q.list(ctx, q.inflightDir)
	if err != nil {
		return nil, err
	}
	for _, obj := range stale {
		if err := fs.Move(ctx, obj.URL(), url.Join(q.pendingDir, obj.Name())); err != nil {
			return nil, fmt.Errorf("failed to recover message %s: %w", obj.Name(), err)
		}
	}
	return q, nil
}

// Publish adds a new message to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return fmt.Errorf("nil payload")
	}
	now := time.Now()
	message := &Message[T]{ID: uuid.New().String(), Data: *t, State: MessageStatePending, CreatedAt: now}
	return q.write(ctx, q.pendingDir, filename(now, message.ID), message)
}

// Consume polls the spool until a due message is available or ctx is done
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		message, err := q.next(ctx)
		if err != nil || message != nil {
			return message, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

// Size returns the number of pending messages
func (q *Queue[T]) Size() int {
	objects, err := q.list(context.Background(), q.pendingDir)
	if err != nil {
		return 0
	}
	return len(objects)
}

// DLQSize returns the number of dead lettered messages
func (q *Queue[T]) DLQSize() int {
	objects, err := q.list(context.Background(), q.dlqDir)
	if err != nil {
		return 0
	}
	return len(objects)
}

func (q *Queue[T]) next(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.list(ctx, q.pendingDir)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixNano()
	for _, obj := range objects {
		if due, ok := notBefore(obj.Name()); ok && due > now {
			continue
		}
		data, err := q.fs.Download(ctx, obj)
		if err != nil {
			return nil, fmt.Errorf("failed to read message %s: %w", obj.URL(), err)
		}
		message := &Message[T]{}
		if err := json.Unmarshal(data, message); err != nil {
			_ = q.fs.Move(ctx, obj.URL(), url.Join(q.dlqDir, obj.Name()))
			return nil, fmt.Errorf("failed to unmarshal message %s: %w", obj.URL(), err)
		}
		if err := q.fs.Move(ctx, obj.URL(), url.Join(q.inflightDir, obj.Name())); err != nil {
			return nil, fmt.Errorf("failed to claim message %s: %w", obj.URL(), err)
		}
		message.State = MessageStateProcessing
		message.queue = q
		message.name = obj.Name()
		return message, nil
	}
	return nil, nil
}

func (q *Queue[T]) reschedule(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	inflight := url.Join(q.inflightDir, m.name)
	var err error
	if m.Retries > q.config.MaxRetries {
		err = q.write(ctx, q.dlqDir, m.name, m)
	} else {
		m.State = MessageStatePending
		err = q.write(ctx, q.pendingDir, filename(time.Now().Add(q.config.RetryDelay), m.ID), m)
	}
	if err != nil {
		return err
	}
	return q.fs.Delete(ctx, inflight)
}

func (q *Queue[T]) write(ctx context.Context, dir, name string, message *Message[T]) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.fs.Upload(ctx, url.Join(dir, name), file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var result []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			result = append(result, obj)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

func filename(at time.Time, id string) string {
	return fmt.Sprintf("%020d-%s.json", at.UnixNano(), id)
}

func notBefore(name string) (int64, bool) {
	idx := strings.IndexByte(name, '-')
	if idx <= 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(name[:idx], 10, 64)
	return v, err == nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
