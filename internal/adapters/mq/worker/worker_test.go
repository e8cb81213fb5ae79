package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/featreg/internal/adapters/mq/queue"
	worker "github.com/okian/featreg/internal/adapters/mq/worker"
	model "github.com/okian/featreg/internal/domain/model"
	logging "github.com/okian/featreg/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	ch        chan model.Change
	closeOnce sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan model.Change, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.Change {
	return mq.ch
}

func (mq *mockQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.ch) })
	return nil
}

type mockSink struct {
	mu       sync.Mutex
	recorded []model.Change
	failFor  map[int64]error
}

func newMockSink() *mockSink {
	return &mockSink{failFor: make(map[int64]error)}
}

func (s *mockSink) Record(_ context.Context, c model.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[c.FeatureID]; ok {
		return err
	}
	s.recorded = append(s.recorded, c)
	return nil
}

func (s *mockSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recorded)
}

func (s *mockSink) has(featureID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.recorded {
		if c.FeatureID == featureID {
			return true
		}
	}
	return false
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		sink := newMockSink()

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(q, sink,
				worker.WithName("test-worker"),
				worker.WithLogger(logging.Get()),
			)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, sink)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And a change arrives", func() {
				q.ch <- model.Change{Seq: 1, FeatureID: 212, Kind: model.ChangeRegistered}

				convey.Convey("Then it is recorded in the sink", func() {
					convey.So(eventually(func() bool { return sink.has(212) }), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And the sink fails", func() {
				sink.mu.Lock()
				sink.failFor[13] = errors.New("sink error")
				sink.mu.Unlock()
				q.ch <- model.Change{Seq: 1, FeatureID: 13}
				q.ch <- model.Change{Seq: 2, FeatureID: 14}

				convey.Convey("Then the worker keeps going", func() {
					convey.So(eventually(func() bool { return sink.has(14) }), convey.ShouldBeTrue)
					convey.So(sink.has(13), convey.ShouldBeFalse)
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()

				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, sink)
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the queue closes", func() {
			w := worker.NewInMemoryWorker(q, sink)
			go w.Run(context.Background())
			_ = q.Close()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		sink := newMockSink()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, sink)

			convey.Convey("Then it sizes itself to the CPUs", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When started and fed changes", func() {
			pool := worker.NewPool(3, q, sink, worker.WithPoolLogger(logging.Get()))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for i := 1; i <= 100; i++ {
				convey.So(q.Publish(ctx, model.Change{Seq: uint64(i), FeatureID: int64(i)}), convey.ShouldBeTrue)
			}

			convey.Convey("Then shutdown drains every queued change", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer shutdownCancel()

				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(sink.count(), convey.ShouldEqual, 100)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
