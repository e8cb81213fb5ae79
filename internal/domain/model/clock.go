package model

import (
	"sync"
	"time"
)

// Clock supplies timestamps for records.
type Clock interface {
	Now() time.Time
}

// MonotonicClock returns UTC wall-clock times that never go backwards,
// even if the system clock is stepped.
type MonotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewMonotonicClock wraps now (time.Now when nil).
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

// Now returns max(now(), last) in UTC with the monotonic reading stripped.
func (c *MonotonicClock) Now() time.Time {
	t := c.now().UTC().Round(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
