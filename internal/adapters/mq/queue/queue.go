// Package queue carries registry change notifications from the request path
// to the background change-feed workers.
//
// Enqueue never blocks: when the buffer is full the change is dropped and
// counted, so a slow consumer cannot stall a mutation.
package queue

import (
	"context"
	"sync"

	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Change is the payload flowing through the queue.
type Change = model.Change

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a change to the queue.
	// Returns false if the queue is full or closed and the change was not enqueued.
	Enqueue(ctx context.Context, c Change) bool

	// Dequeue returns a channel that receives changes as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Change

	// Len returns the current number of queued changes.
	Len(ctx context.Context) int

	// Close stops accepting changes. Already queued changes can still be dequeued.
	Close() error

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	changes  chan Change
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.changes = make(chan Change, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)

	return q
}

// Enqueue adds a change to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Change) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop("closed")
		return false
	}
	if ctx.Err() != nil {
		q.drop("context_cancelled")
		return false
	}

	select {
	case q.changes <- c:
		metrics.RecordChangePublished()
		q.observeSize()
		return true
	default:
		q.drop("queue_full")
		return false
	}
}

// Publish is Enqueue under the name the registry expects.
func (q *InMemoryQueue) Publish(ctx context.Context, c Change) bool {
	return q.Enqueue(ctx, c)
}

// Dequeue returns a channel that will receive changes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Change {
	out := make(chan Change)
	go func() {
		defer close(out)
		for c := range q.changes {
			select {
			case out <- c:
				q.observeSize()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued changes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.observeSize()
}

// Capacity returns the maximum number of buffered changes.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops the queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.changes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observeSize() int {
	size := len(q.changes)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

func (q *InMemoryQueue) drop(reason string) {
	metrics.RecordChangeDropped()
	metrics.RecordErrorByComponent("queue", reason)
}
