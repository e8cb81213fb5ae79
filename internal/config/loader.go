package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "FEATREG_"
	envFile    = "FEATREG_CONFIG"
	envPort    = "PORT"
	maxTCPPort = 65535
)

// metricNameRe is the Prometheus metric and label name grammar.
var metricNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FEATREG_CONFIG is set
//  3. env (prefix FEATREG_)
//  4. PORT, which replaces the listen address with ":PORT"
func Load(_ context.Context) (*Config, error) {
	cfg := *New()

	k := koanf.New(".")

	if path := os.Getenv(envFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FEATREG_SHARD_COUNT -> shard_count. Keys are flat, so underscores stay.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if port, ok := os.LookupEnv(envPort); ok && port != "" {
		cfg.Addr = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("%w: addr %q: %w", ErrInvalidConfig, c.Addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > maxTCPPort {
		return fmt.Errorf("%w: invalid port %q", ErrInvalidConfig, port)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.ShardCount < 1 {
		return fmt.Errorf("%w: shard_count must be positive", ErrInvalidConfig)
	}
	for _, f := range []struct {
		key   string
		value int
	}{
		{"change_queue_size", c.ChangeQueueSize},
		{"change_worker_count", c.ChangeWorkerCount},
		{"change_log_size", c.ChangeLogSize},
		{"shutdown_timeout_ms", c.ShutdownTimeoutMS},
	} {
		if f.value < 1 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, f.key, f.value)
		}
	}
	if c.MaxChangesLimit < 1 {
		return fmt.Errorf("%w: max_changes_limit must be positive", ErrInvalidConfig)
	}
	if c.RateLimit < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}
	return c.validateMetrics()
}

func (c *Config) validateMetrics() error {
	if !metricNameRe.MatchString(c.MetricsNamespace) {
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric name", ErrInvalidConfig, c.MetricsNamespace)
	}
	if c.MetricsSubsystem != "" && !metricNameRe.MatchString(c.MetricsSubsystem) {
		return fmt.Errorf("%w: metrics_subsystem %q is not a valid metric name", ErrInvalidConfig, c.MetricsSubsystem)
	}
	for i := 1; i < len(c.MetricsLatencyBuckets); i++ {
		if c.MetricsLatencyBuckets[i] <= c.MetricsLatencyBuckets[i-1] {
			return fmt.Errorf("%w: metrics_latency_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	for name := range c.MetricsConstLabels {
		if !metricNameRe.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("%w: metrics_const_labels key %q is not a valid label name", ErrInvalidConfig, name)
		}
	}
	return nil
}
