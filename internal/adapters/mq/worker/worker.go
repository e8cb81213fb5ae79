// Package worker drains registry changes off the queue and hands them to a
// sink, keeping the request path free of change-feed bookkeeping.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/pkg/logger"
	"github.com/okian/featreg/pkg/metrics"
)

// Change is what workers read off the queue.
type Change = model.Change

// Queue defines how workers receive changes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Change
}

// Sink stores a processed change.
type Sink interface {
	Record(ctx context.Context, c Change) error
}

// Worker processes changes from a queue.
type Worker interface {
	// Run processes changes until the queue closes, ctx is canceled or
	// Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	changes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := w.process(ctx, c); err != nil {
				w.logger.Error(ctx, "error processing change", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker without waiting for the queue to drain.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, c Change) error { //nolint:gocritic // hugeParam: Change is passed by value through the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.sink.Record(ctx, c); err != nil {
		metrics.RecordErrorByComponent("worker", "sink_error")
		metrics.RecordErrorByType("sink_error", "medium")
		return fmt.Errorf("record change %s for feature %d: %w", c.ID, c.FeatureID, err)
	}

	metrics.RecordChangeProcessed()
	w.logger.Debug(ctx, "change recorded",
		logger.Int64("feature_id", c.FeatureID),
		logger.String("kind", string(c.Kind)),
		logger.Any("seq", c.Seq),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count means one worker per CPU.
func NewPool(workerCount int, queue Queue, sink Sink, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(queue, sink,
			WithName("change-worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "change workers started", logger.Int("count", len(p.workers)))
}

// Shutdown closes the queue and lets workers drain what is left. Workers
// still busy when ctx expires are stopped and the remaining changes are lost.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut int
	for _, w := range p.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			timedOut++
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	}
	metrics.UpdateWorkerCount(0)

	if timedOut > 0 {
		p.logger.Warn(ctx, "change workers did not drain in time", logger.Int("workers", timedOut))
		return fmt.Errorf("%d workers did not drain: %w", timedOut, ctx.Err())
	}
	return nil
}
