package window

import (
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
)

type evictRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *evictRecorder) record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *evictRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func TestTTLSet_ExpiresAtScheduledDeadline(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	rec := &evictRecorder{}
	s := NewTTLSet[string](10, clk, rec.record)

	s.Add("p1", "pulse", 800*time.Millisecond)

	clk.Advance(799 * time.Millisecond).MustWait(ctx)
	if s.Len() != 1 {
		t.Fatalf("entry expired early: len=%d", s.Len())
	}

	clk.Advance(time.Millisecond).MustWait(ctx)
	if s.Len() != 0 {
		t.Fatalf("entry survived past its deadline: len=%d", s.Len())
	}
	if got := rec.seen(); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("expected evict callback for p1, got %v", got)
	}
}

func TestTTLSet_CapacityCeilingDropsOldest(t *testing.T) {
	clk := quartz.NewMock(t)
	rec := &evictRecorder{}
	s := NewTTLSet[int](2, clk, rec.record)

	s.Add("a", 1, time.Second)
	s.Add("b", 2, time.Second)
	s.Add("c", 3, time.Second)

	if s.Len() != 2 {
		t.Fatalf("expected capacity 2, got len=%d", s.Len())
	}
	got := s.Snapshot()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected [2 3], got %v", got)
	}
	if evicted := rec.seen(); len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("expected a evicted by capacity, got %v", evicted)
	}
}

func TestTTLSet_ReAddSupersedesScheduledRemoval(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	s := NewTTLSet[int](10, clk, nil)

	s.Add("x", 1, time.Second)
	clk.Advance(500 * time.Millisecond).MustWait(ctx)
	s.Add("x", 2, time.Second)

	// The original deadline passes; the re-added entry must survive it.
	clk.Advance(600 * time.Millisecond).MustWait(ctx)
	if s.Len() != 1 {
		t.Fatalf("re-added entry removed by stale timer: len=%d", s.Len())
	}

	clk.Advance(400 * time.Millisecond).MustWait(ctx)
	if s.Len() != 0 {
		t.Fatalf("re-added entry survived its own deadline: len=%d", s.Len())
	}
}

func TestTTLSet_RemoveCancelsDeadline(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	rec := &evictRecorder{}
	s := NewTTLSet[int](10, clk, rec.record)

	s.Add("x", 1, time.Second)
	if !s.Remove("x") {
		t.Fatal("expected Remove to report the entry as present")
	}

	clk.Advance(2 * time.Second).MustWait(ctx)
	if got := rec.seen(); len(got) != 0 {
		t.Fatalf("evict callback fired for removed entry: %v", got)
	}
}

func TestTTLSet_CloseIsIdempotent(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	rec := &evictRecorder{}
	s := NewTTLSet[int](10, clk, rec.record)

	s.Add("x", 1, time.Second)
	s.Close()
	s.Close()

	s.Add("y", 2, time.Second)
	if s.Len() != 0 {
		t.Fatalf("Add after Close inserted an entry: len=%d", s.Len())
	}

	clk.Advance(2 * time.Second).MustWait(ctx)
	if got := rec.seen(); len(got) != 0 {
		t.Fatalf("evict callback fired after Close: %v", got)
	}
}
