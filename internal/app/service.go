// Package service is the composition root that implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/featreg/internal/adapters/mq/queue"
	"github.com/okian/featreg/internal/adapters/mq/worker"
	"github.com/okian/featreg/internal/adapters/repository"
	"github.com/okian/featreg/internal/domain/changelog"
	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/internal/domain/registry"
	"github.com/okian/featreg/pkg/logger"
	"github.com/okian/featreg/pkg/metrics"
)

const (
	defaultShardCount      = 16
	defaultQueueSize       = 10_000
	defaultChangeLogSize   = 1_000
	defaultMetricsInterval = 5 * time.Second
)

// Service wires the store, registry and change feed together.
type Service struct {
	mu sync.RWMutex

	store    *repository.ShardedStore
	registry *registry.Registry
	queue    *queue.InMemoryQueue
	changes  *changelog.Log
	pool     *worker.Pool

	shardCount      int
	queueSize       int
	workerCount     int
	changeLogSize   int
	metricsInterval time.Duration
	clock           model.Clock

	started   bool
	stopped   bool
	startedAt time.Time
	stopCh    chan struct{}
	updaterWG sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service. The registry is usable immediately; Start brings
// up the change feed workers.
func New(opts ...Option) *Service {
	s := &Service{
		shardCount:      defaultShardCount,
		queueSize:       defaultQueueSize,
		workerCount:     runtime.NumCPU(),
		changeLogSize:   defaultChangeLogSize,
		metricsInterval: defaultMetricsInterval,
		stopCh:          make(chan struct{}),
		logger:          logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.store = repository.NewShardedStore(context.Background(),
		repository.WithShardCount(s.shardCount),
		repository.WithMetricsUpdateInterval(s.metricsInterval),
	)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.changes = changelog.New(s.changeLogSize)
	s.pool = worker.NewPool(s.workerCount, s.queue, s.changes,
		worker.WithPoolLogger(s.logger.Named("changes")),
	)

	regOpts := []registry.Option{
		registry.WithPublisher(s.queue),
		registry.WithLogger(s.logger.Named("registry")),
	}
	if s.clock != nil {
		regOpts = append(regOpts, registry.WithClock(s.clock))
	}
	s.registry = registry.New(s.store, regOpts...)

	return s
}

// Start launches the change feed workers and the metrics updater.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.pool.Start(context.WithoutCancel(ctx))
	s.updaterWG.Add(1)
	go s.runMetricsUpdater()

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "feature registry started",
		logger.Int("shards", s.shardCount),
		logger.Int("change_workers", s.pool.Size()),
		logger.Int("change_queue_size", s.queueSize),
		logger.Int("change_log_size", s.changeLogSize),
	)
	return nil
}

// Stop drains the change feed and releases background resources. Changes
// still queued when ctx expires are lost.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	s.logger.Info(ctx, "stopping feature registry")

	var err error
	if s.started {
		if perr := s.pool.Shutdown(ctx); perr != nil {
			err = fmt.Errorf("drain change feed: %w", perr)
		}
	} else {
		_ = s.queue.Close()
	}
	close(s.stopCh)
	s.updaterWG.Wait()
	_ = s.store.Close()

	s.started = false
	s.logger.Info(ctx, "feature registry stopped")
	return err
}

// Register creates a feature record.
func (s *Service) Register(ctx context.Context, id int64, data string) (model.FeatureRecord, error) {
	return s.registry.Register(ctx, id, data)
}

// Get returns a feature record.
func (s *Service) Get(ctx context.Context, id int64) (model.FeatureRecord, error) {
	return s.registry.Get(ctx, id)
}

// Update patches a feature record.
func (s *Service) Update(ctx context.Context, id int64, fields model.Fields) (model.FeatureRecord, error) {
	return s.registry.Update(ctx, id, fields)
}

// List returns every feature record ordered by id.
func (s *Service) List(ctx context.Context) []model.FeatureRecord {
	return s.registry.List(ctx)
}

// Delete removes a feature record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.registry.Delete(ctx, id)
}

// RecentChanges returns up to n change-feed entries, newest first.
func (s *Service) RecentChanges(_ context.Context, n int) []model.Change {
	return s.changes.Recent(n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	counts := s.registry.StatusCounts(ctx)
	total := 0
	byStatus := make(map[string]int, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
		total += n
	}

	stats := map[string]interface{}{
		"started":           s.started,
		"shardCount":        s.store.ShardCount(),
		"changeWorkerCount": s.pool.Size(),
		"changeQueueSize":   s.queue.Capacity(),
		"changeQueueLength": s.queue.Len(ctx),
		"changeLogLength":   s.changes.Len(),
		"totalFeatures":     total,
		"featuresByStatus":  byStatus,
	}
	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	}
	return stats
}

func (s *Service) runMetricsUpdater() {
	defer s.updaterWG.Done()
	ticker := time.NewTicker(s.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.updateStatusMetrics()
		}
	}
}

func (s *Service) updateStatusMetrics() {
	ctx := context.Background()
	for status, n := range s.registry.StatusCounts(ctx) {
		metrics.UpdateFeaturesByStatus(string(status), n)
	}
	metrics.UpdateFeaturesTotal(s.registry.Count(ctx))
}
