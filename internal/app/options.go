package service

import (
	"time"

	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithShardCount sets the number of store shards.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithChangeQueueSize sets the capacity of the change feed queue.
func WithChangeQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithChangeWorkerCount sets the number of change feed workers.
func WithChangeWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithChangeLogSize sets how many changes the change log retains.
func WithChangeLogSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.changeLogSize = size
		}
	}
}

// WithMetricsInterval sets how often status gauges are refreshed.
func WithMetricsInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.metricsInterval = d
		}
	}
}

// WithClock replaces the registry's timestamp source.
func WithClock(c model.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
