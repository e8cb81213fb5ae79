// Package changelog keeps a bounded, in-memory history of registry changes.
package changelog

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/pkg/metrics"
)

const defaultCapacity = 1_000

// Log is a fixed-size ring of the most recent changes. Once full, the
// oldest entry is overwritten.
type Log struct {
	mu      sync.RWMutex
	entries []model.Change
	next    int
	full    bool
}

// New returns a Log holding at most capacity changes.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{entries: make([]model.Change, capacity)}
}

// Record appends c, evicting the oldest entry when the ring is full.
func (l *Log) Record(_ context.Context, c model.Change) error {
	l.mu.Lock()
	l.entries[l.next] = c
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
	size := l.lenLocked()
	l.mu.Unlock()

	metrics.UpdateChangeLogSize(size)
	return nil
}

// Recent returns up to n changes, newest first by sequence number.
// Workers may record out of order, so the result is sorted rather than
// read off the ring positionally.
func (l *Log) Recent(n int) []model.Change {
	l.mu.RLock()
	size := l.lenLocked()
	out := make([]model.Change, size)
	copy(out, l.entries[:size])
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Len returns the number of retained changes.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lenLocked()
}

// Capacity returns the maximum number of retained changes.
func (l *Log) Capacity() int {
	return len(l.entries)
}

func (l *Log) lenLocked() int {
	if l.full {
		return len(l.entries)
	}
	return l.next
}
