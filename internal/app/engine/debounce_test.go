package engine

import (
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/habitloop/LivePulse/internal/app/model"
)

func TestDebouncer_SuppressesWithinWindow(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	d := NewDebouncer(time.Second, 5*time.Second, clk)

	if !d.ShouldAdmit("u1", model.EventCheckin) {
		t.Fatal("first event must be admitted")
	}

	clk.Advance(300 * time.Millisecond).MustWait(ctx)
	if d.ShouldAdmit("u1", model.EventCheckin) {
		t.Fatal("identical pair within the window must be suppressed")
	}

	// A different key is unaffected.
	if !d.ShouldAdmit("u1", model.EventLevelUp) {
		t.Fatal("different type must be admitted")
	}
	if !d.ShouldAdmit("u2", model.EventCheckin) {
		t.Fatal("different subject must be admitted")
	}
}

func TestDebouncer_AdmitsAfterWindow(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	d := NewDebouncer(time.Second, 5*time.Second, clk)

	if !d.ShouldAdmit("u1", model.EventCheckin) {
		t.Fatal("first event must be admitted")
	}

	clk.Advance(1100 * time.Millisecond).MustWait(ctx)
	if !d.ShouldAdmit("u1", model.EventCheckin) {
		t.Fatal("pair with a gap larger than the window must both be admitted")
	}
}

func TestDebouncer_SuppressionDoesNotExtendItself(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	d := NewDebouncer(time.Second, 5*time.Second, clk)

	d.ShouldAdmit("u1", model.EventCheckin)

	// A burst of suppressed duplicates must not push the window forward.
	for i := 0; i < 4; i++ {
		clk.Advance(250 * time.Millisecond).MustWait(ctx)
		d.ShouldAdmit("u1", model.EventCheckin)
	}

	clk.Advance(100 * time.Millisecond).MustWait(ctx)
	if !d.ShouldAdmit("u1", model.EventCheckin) {
		t.Fatal("event past the original window must be admitted")
	}
}

func TestDebouncer_SweepBoundsMapGrowth(t *testing.T) {
	ctx := t.Context()
	clk := quartz.NewMock(t)
	d := NewDebouncer(time.Second, 5*time.Second, clk)

	for _, id := range []string{"a", "b", "c"} {
		d.ShouldAdmit(id, model.EventCheckin)
	}

	clk.Advance(6 * time.Second).MustWait(ctx)
	d.ShouldAdmit("fresh", model.EventCheckin)

	if removed := d.Sweep(); removed != 3 {
		t.Fatalf("expected 3 stale keys removed, got %d", removed)
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 key after sweep, got %d", d.Len())
	}
}
