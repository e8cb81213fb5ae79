package smoke

import (
	"fmt"
	"time"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultStart   = 1000
	DefaultCount   = 50
	DefaultWorkers = 8
	DefaultTimeout = 10 * time.Second
)

// Config holds the parameters of a smoke run.
type Config struct {
	BaseURL string        // base URL of the service
	Start   int64         // first feature id to exercise
	Count   int           // number of consecutive ids
	Workers int           // concurrent requests in flight
	Timeout time.Duration // per-request timeout
	Verbose bool          // log every request outcome
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Start == 0 {
		c.Start = DefaultStart
	}
	if c.Count == 0 {
		c.Count = DefaultCount
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	if c.Start < 1 {
		return fmt.Errorf("start must be positive, got %d", c.Start)
	}
	if c.Count < 1 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Stats summarizes a smoke run.
type Stats struct {
	Registered int
	Verified   int
	Degraded   int
	Deleted    int
	Requests   int64
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// FeatureData is the payload registered for id.
func FeatureData(id int64) string {
	return fmt.Sprintf("Feature %d data", id)
}
