package window

import (
	"testing"
	"time"

	"github.com/coder/quartz"
)

func TestCapped_NeverExceedsCapacity(t *testing.T) {
	clk := quartz.NewMock(t)
	w := NewCapped[int](5, clk)

	for i := 0; i < 12; i++ {
		w.Push(i)
		if w.Len() > 5 {
			t.Fatalf("window exceeded capacity: len=%d", w.Len())
		}
	}

	got := w.Snapshot()
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(got))
	}
	// Newest first.
	for i, v := range got {
		if v != 11-i {
			t.Fatalf("expected entry %d to be %d, got %d", i, 11-i, v)
		}
	}
}

func TestCapped_EvictOlderThan(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	w := NewCapped[string](10, clk)

	w.Push("old-1")
	w.Push("old-2")

	clk.Advance(5 * time.Second).MustWait(ctx)
	w.Push("fresh")

	dropped := w.EvictOlderThan(3 * time.Second)
	if dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}

	got := w.Snapshot()
	if len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("expected only the fresh entry, got %v", got)
	}
}

func TestCapped_EvictWithNoTraffic(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	w := NewCapped[int](10, clk)

	w.Push(1)
	w.Push(2)

	clk.Advance(time.Minute).MustWait(ctx)
	if dropped := w.EvictOlderThan(30 * time.Second); dropped != 2 {
		t.Fatalf("expected both entries evicted, got %d", dropped)
	}
	if w.Len() != 0 {
		t.Fatalf("expected empty window, got len=%d", w.Len())
	}
}

func TestCapped_SnapshotIsCopy(t *testing.T) {
	clk := quartz.NewMock(t)
	w := NewCapped[int](3, clk)
	w.Push(1)

	snap := w.Snapshot()
	snap[0] = 99

	if got := w.Snapshot()[0]; got != 1 {
		t.Fatalf("snapshot mutation leaked into window: %d", got)
	}
}
