// Package window provides the two bounded-window primitives shared by every
// feature that needs expiry: a capped most-recent-N buffer and a TTL-scheduled
// set. Both are safe for concurrent push/evict from the ingestion path and
// snapshot reads from consumers.
package window

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

type cappedEntry[T any] struct {
	value   T
	addedAt time.Time
}

// Capped is a most-recent-N ordered buffer. Push prepends and truncates to
// capacity; EvictOlderThan removes entries by arrival age so stale items
// disappear even with no new traffic.
type Capped[T any] struct {
	mu       sync.Mutex
	clock    quartz.Clock
	capacity int
	entries  []cappedEntry[T] // newest first
}

// NewCapped returns an empty window holding at most capacity entries.
func NewCapped[T any](capacity int, clk quartz.Clock) *Capped[T] {
	if capacity < 1 {
		capacity = 1
	}
	if clk == nil {
		clk = quartz.NewReal()
	}
	return &Capped[T]{
		clock:    clk,
		capacity: capacity,
		entries:  make([]cappedEntry[T], 0, capacity),
	}
}

// Push prepends v and drops the oldest entry when over capacity.
func (w *Capped[T]) Push(v T) {
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, cappedEntry[T]{})
	copy(w.entries[1:], w.entries)
	w.entries[0] = cappedEntry[T]{value: v, addedAt: now}

	if len(w.entries) > w.capacity {
		w.entries = w.entries[:w.capacity]
	}
}

// EvictOlderThan removes entries whose arrival age exceeds ttl and returns
// how many were dropped.
func (w *Capped[T]) EvictOlderThan(ttl time.Duration) int {
	cutoff := w.clock.Now().Add(-ttl)

	w.mu.Lock()
	defer w.mu.Unlock()

	// Entries are ordered newest first, so the survivors form a prefix.
	keep := len(w.entries)
	for i, e := range w.entries {
		if e.addedAt.Before(cutoff) {
			keep = i
			break
		}
	}
	dropped := len(w.entries) - keep
	w.entries = w.entries[:keep]
	return dropped
}

// Len returns the current number of entries.
func (w *Capped[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Snapshot returns a fully-formed copy of the window, newest first.
func (w *Capped[T]) Snapshot() []T {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]T, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.value
	}
	return out
}
