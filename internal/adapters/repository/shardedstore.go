package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/pkg/metrics"
)

const (
	defaultShardCount            = 16
	defaultMetricsUpdateInterval = 5 * time.Second
)

// shard guards a slice of the key space. Records are stored by value and
// replaced whole, so a reader holding the read lock copies out either the
// old or the new record, never a mix.
type shard struct {
	mu      sync.RWMutex
	records map[int64]model.FeatureRecord
}

// ShardedStore is an in-memory Store split into lock shards by id.
// Writers on one key are serialized by that key's shard lock; keys on other
// shards proceed in parallel.
type ShardedStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

var _ Store = (*ShardedStore)(nil)

// NewShardedStore constructs a store and starts its metrics updater, which
// runs until ctx is done or Close is called.
func NewShardedStore(ctx context.Context, opts ...Option) *ShardedStore {
	s := &ShardedStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[int64]model.FeatureRecord)}
	}

	metrics.UpdateStoreShardCount(s.shardCount)
	s.startMetricsUpdater(ctx)
	return s
}

func (s *ShardedStore) shardFor(id int64) *shard {
	return s.shards[uint64(id)%uint64(len(s.shards))]
}

// Create implements Store.Create.
func (s *ShardedStore) Create(_ context.Context, id int64, build func() (model.FeatureRecord, error)) (model.FeatureRecord, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.records[id]; ok {
		return model.FeatureRecord{}, ErrAlreadyExists
	}
	rec, err := build()
	if err != nil {
		return model.FeatureRecord{}, err
	}
	sh.records[id] = rec
	return rec, nil
}

// Update implements Store.Update.
func (s *ShardedStore) Update(_ context.Context, id int64, mutate func(cur model.FeatureRecord) (model.FeatureRecord, error)) (model.FeatureRecord, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur, ok := sh.records[id]
	if !ok {
		return model.FeatureRecord{}, ErrNotFound
	}
	next, err := mutate(cur)
	if err != nil {
		return model.FeatureRecord{}, err
	}
	next.ID = id
	sh.records[id] = next
	return next, nil
}

// Delete implements Store.Delete.
func (s *ShardedStore) Delete(_ context.Context, id int64, check func(cur model.FeatureRecord) error) (model.FeatureRecord, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur, ok := sh.records[id]
	if !ok {
		return model.FeatureRecord{}, ErrNotFound
	}
	if check != nil {
		if err := check(cur); err != nil {
			return model.FeatureRecord{}, err
		}
	}
	delete(sh.records, id)
	return cur, nil
}

// Get implements Store.Get.
func (s *ShardedStore) Get(_ context.Context, id int64) (model.FeatureRecord, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	rec, ok := sh.records[id]
	if !ok {
		return model.FeatureRecord{}, ErrNotFound
	}
	return rec, nil
}

// List implements Store.List. Shards are visited one at a time, so a
// concurrent writer on another shard is never blocked for the whole scan.
func (s *ShardedStore) List(_ context.Context) []model.FeatureRecord {
	out := make([]model.FeatureRecord, 0, s.countAll())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.records {
			out = append(out, rec)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count implements Store.Count.
func (s *ShardedStore) Count(_ context.Context) int {
	return s.countAll()
}

// StatusCounts implements Store.StatusCounts.
func (s *ShardedStore) StatusCounts(_ context.Context) map[model.Status]int {
	counts := map[model.Status]int{
		model.StatusHealthy:  0,
		model.StatusDegraded: 0,
	}
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.records {
			counts[rec.Status]++
		}
		sh.mu.RUnlock()
	}
	return counts
}

// ShardCount returns the number of shards.
func (s *ShardedStore) ShardCount() int {
	return len(s.shards)
}

func (s *ShardedStore) countAll() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}

// Close stops the background metrics updater.
func (s *ShardedStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// startMetricsUpdater publishes per-shard record counts on an interval.
func (s *ShardedStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *ShardedStore) updateMetrics() {
	for i, sh := range s.shards {
		sh.mu.RLock()
		n := len(sh.records)
		sh.mu.RUnlock()
		metrics.UpdateStoreShardRecords("shard_"+strconv.Itoa(i), n)
	}
}
