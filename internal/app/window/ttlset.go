package window

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

type ttlEntry[T any] struct {
	value   T
	addedAt time.Time
	gen     uint64
	timer   *quartz.Timer
}

// TTLSet holds keyed entries that are removed at an exact scheduled deadline
// rather than by lazy sweep. A hard capacity ceiling applies as a safety
// bound: at capacity the oldest entry is dropped before the new one goes in.
type TTLSet[T any] struct {
	mu       sync.Mutex
	clock    quartz.Clock
	capacity int
	entries  map[string]*ttlEntry[T]
	order    []string // insertion order, oldest first
	gen      uint64
	closed   bool
	onEvict  func(id string)
}

// NewTTLSet returns an empty set bounded to capacity entries. onEvict, if
// non-nil, is called (outside the lock) for every entry removed by expiry or
// capacity pressure.
func NewTTLSet[T any](capacity int, clk quartz.Clock, onEvict func(id string)) *TTLSet[T] {
	if capacity < 1 {
		capacity = 1
	}
	if clk == nil {
		clk = quartz.NewReal()
	}
	return &TTLSet[T]{
		clock:    clk,
		capacity: capacity,
		entries:  make(map[string]*ttlEntry[T]),
		onEvict:  onEvict,
	}
}

// Add inserts v under id and schedules its removal at now+ttl. Re-adding an
// existing id supersedes the previously scheduled removal.
func (s *TTLSet[T]) Add(id string, v T, ttl time.Duration) {
	now := s.clock.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	var evicted []string

	if old, ok := s.entries[id]; ok {
		old.timer.Stop()
		s.removeFromOrderLocked(id)
		delete(s.entries, id)
	} else if len(s.entries) >= s.capacity {
		oldest := s.order[0]
		if e := s.entries[oldest]; e != nil {
			e.timer.Stop()
			delete(s.entries, oldest)
		}
		s.order = s.order[1:]
		evicted = append(evicted, oldest)
	}

	s.gen++
	gen := s.gen
	entry := &ttlEntry[T]{value: v, addedAt: now, gen: gen}
	entry.timer = s.clock.AfterFunc(ttl, func() { s.expire(id, gen) })
	s.entries[id] = entry
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.notifyEvicted(evicted)
}

func (s *TTLSet[T]) expire(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if s.closed || !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	s.removeFromOrderLocked(id)
	s.mu.Unlock()

	s.notifyEvicted([]string{id})
}

// Remove drops id immediately, cancelling its scheduled removal.
func (s *TTLSet[T]) Remove(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		e.timer.Stop()
		delete(s.entries, id)
		s.removeFromOrderLocked(id)
	}
	s.mu.Unlock()
	return ok
}

// Len returns the current number of live entries.
func (s *TTLSet[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of the live entries in insertion order.
func (s *TTLSet[T]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, 0, len(s.entries))
	for _, id := range s.order {
		if e, ok := s.entries[id]; ok {
			out = append(out, e.value)
		}
	}
	return out
}

// Close cancels every pending scheduled removal and empties the set. Safe to
// call more than once; Add after Close is a no-op.
func (s *TTLSet[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, e := range s.entries {
		e.timer.Stop()
	}
	s.entries = map[string]*ttlEntry[T]{}
	s.order = nil
}

func (s *TTLSet[T]) removeFromOrderLocked(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *TTLSet[T]) notifyEvicted(ids []string) {
	if s.onEvict == nil {
		return
	}
	for _, id := range ids {
		s.onEvict(id)
	}
}
