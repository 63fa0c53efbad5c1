package engine

import (
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/habitloop/LivePulse/internal/app/model"
)

// Debouncer suppresses near-duplicate events: an identical (subject, type)
// pair is admitted at most once per admit window. This is a best-effort,
// single-instance guard against at-least-once redelivery and rapid duplicate
// client actions, not global deduplication.
type Debouncer struct {
	clock     quartz.Clock
	window    time.Duration
	retention time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewDebouncer returns a deduplicator admitting one event per key per window.
// Keys idle longer than retention are dropped by Sweep.
func NewDebouncer(window, retention time.Duration, clk quartz.Clock) *Debouncer {
	if clk == nil {
		clk = quartz.NewReal()
	}
	return &Debouncer{
		clock:     clk,
		window:    window,
		retention: retention,
		lastSeen:  make(map[string]time.Time),
	}
}

// ShouldAdmit reports whether an event for (subjectID, eventType) may pass.
// Suppressed events do not refresh the key, so a sustained burst cannot
// extend its own suppression past the window.
func (d *Debouncer) ShouldAdmit(subjectID string, eventType model.EventType) bool {
	key := subjectID + "|" + string(eventType)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastSeen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.lastSeen[key] = now
	return true
}

// Sweep removes keys older than the retention horizon and returns the count,
// bounding map growth under sustained subject churn.
func (d *Debouncer) Sweep() int {
	cutoff := d.clock.Now().Add(-d.retention)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, seen := range d.lastSeen {
		if seen.Before(cutoff) {
			delete(d.lastSeen, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lastSeen)
}
