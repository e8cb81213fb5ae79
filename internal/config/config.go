// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	// A bare PORT environment variable overrides it with ":PORT".
	Addr string `koanf:"addr"`

	// ShardCount sets the number of lock shards in the feature store.
	ShardCount int `koanf:"shard_count"`

	// ChangeQueueSize bounds the in-memory change feed queue.
	ChangeQueueSize int `koanf:"change_queue_size"`

	// ChangeWorkerCount sets the number of change feed workers.
	ChangeWorkerCount int `koanf:"change_worker_count"`

	// ChangeLogSize caps how many changes are retained for GET /api/changes.
	ChangeLogSize int `koanf:"change_log_size"`

	// MaxChangesLimit caps GET /api/changes?limit.
	MaxChangesLimit int `koanf:"max_changes_limit"`

	// RateLimit is the sustained request rate per second; RateLimitBurst the bucket size.
	RateLimit      float64 `koanf:"rate_limit"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// ShutdownTimeoutMS bounds graceful HTTP shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLatencyBuckets overrides the operation latency histogram
	// buckets, in milliseconds. Empty keeps the built-in buckets.
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`

	// MetricsConstLabels are attached to every metric, e.g. env or instance.
	MetricsConstLabels map[string]string `koanf:"metrics_const_labels"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8080",
		ShardCount:        16,
		ChangeQueueSize:   10_000,
		ChangeWorkerCount: runtime.NumCPU(),
		ChangeLogSize:     1_000,
		MaxChangesLimit:   500,
		RateLimit:         1_000,
		RateLimitBurst:    2_000,
		ShutdownTimeoutMS: 30_000,
		MetricsNamespace:  "featreg",
		MetricsSubsystem:  "registry",
	}
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
