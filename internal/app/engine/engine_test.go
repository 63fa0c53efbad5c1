package engine

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/habitloop/LivePulse/internal/app/model"
)

func testConfig() Config {
	return Config{
		FeedCapacity:      5,
		FeedTTL:           10 * time.Minute,
		PulseCapacity:     10,
		PulseTTL:          2 * time.Second,
		DebounceWindow:    time.Second,
		DebounceRetention: 5 * time.Second,
		SweepInterval:     3 * time.Second,
		RefreshInterval:   30 * time.Second,
		PresenceWindow:    5 * time.Minute,
		DailyXPCap:        150,
		CountryMode:       ModePresence,
		Location:          time.UTC,
	}
}

type engineFixture struct {
	engine     *Engine
	feed       *fakeFeed
	activities *fakeActivities
	users      *fakeUsers
	sessions   *fakeSessions
	metrics    *Metrics
	clock      *quartz.Mock
}

func newFixture(t *testing.T, cfg Config) *engineFixture {
	t.Helper()

	f := &engineFixture{
		feed:       newFakeFeed(),
		activities: &fakeActivities{},
		users:      &fakeUsers{},
		sessions:   &fakeSessions{},
		metrics:    NewMetrics(prometheus.NewRegistry()),
		clock:      quartz.NewMock(t),
	}
	f.engine = New(cfg, Deps{
		Clock:      f.clock,
		Metrics:    f.metrics,
		Feed:       f.feed,
		Activities: f.activities,
		Users:      f.users,
		History:    &fakeHistory{},
		Rollups:    &fakeRollups{},
		Sessions:   f.sessions,
	})
	return f
}

func (f *engineFixture) activate(t *testing.T) {
	t.Helper()
	if err := f.engine.Activate(t.Context()); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	t.Cleanup(f.engine.Deactivate)
}

func (f *engineFixture) emitActivity(t *testing.T, row model.ActivityRow) {
	t.Helper()
	raw, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal row: %v", err)
	}
	f.feed.emit(model.ChangeNotification{
		Table:  model.TableLiveActivity,
		Op:     model.OpInsert,
		NewRow: raw,
	})
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func activityRow(id, subject string, typ model.EventType, at time.Time) model.ActivityRow {
	return model.ActivityRow{
		ID:          id,
		UserID:      subject,
		Username:    "alice",
		EventType:   string(typ),
		CountryCode: "JP",
		CreatedAt:   at,
	}
}

func TestEngine_IngestsAdmittedEvents(t *testing.T) {
	f := newFixture(t, testConfig())
	f.activate(t)

	f.emitActivity(t, activityRow("ev-1", "u1", model.EventCheckin, f.clock.Now()))

	waitFor(t, "feed entry", func() bool { return len(f.engine.RecentFeed()) == 1 })

	feed := f.engine.RecentFeed()
	if feed[0].Description != "alice checked in" {
		t.Fatalf("unexpected description %q", feed[0].Description)
	}
	if feed[0].Event.CountryCode != "JP" {
		t.Fatalf("expected resolved country, got %+v", feed[0].Event)
	}

	pulses := f.engine.ActivePulses()
	if len(pulses) != 1 || pulses[0].ID != "ev-1" || pulses[0].ColorClass != "pulse-green" {
		t.Fatalf("unexpected pulses %+v", pulses)
	}
}

func TestEngine_SuppressesDuplicateBurst(t *testing.T) {
	f := newFixture(t, testConfig())
	f.activate(t)

	now := f.clock.Now()
	f.emitActivity(t, activityRow("ev-1", "u1", model.EventCheckin, now))
	f.emitActivity(t, activityRow("ev-2", "u1", model.EventCheckin, now))

	waitFor(t, "debounce suppression", func() bool {
		return testutil.ToFloat64(f.metrics.EventsSuppressed.WithLabelValues(SuppressDebounce)) == 1
	})

	if got := len(f.engine.RecentFeed()); got != 1 {
		t.Fatalf("expected 1 feed entry after duplicate burst, got %d", got)
	}
}

func TestEngine_MalformedEventTouchesNoView(t *testing.T) {
	f := newFixture(t, testConfig())
	f.activate(t)

	row := activityRow("ev-1", "", model.EventCheckin, f.clock.Now()) // no subject
	f.emitActivity(t, row)

	waitFor(t, "malformed counter", func() bool {
		return testutil.ToFloat64(f.metrics.EventsSuppressed.WithLabelValues(SuppressMalformed)) == 1
	})

	if len(f.engine.RecentFeed()) != 0 {
		t.Fatal("malformed event reached the feed")
	}
	if len(f.engine.ActivePulses()) != 0 {
		t.Fatal("malformed event reached the pulse set")
	}
}

func TestEngine_PulseExpiresFeedSurvives(t *testing.T) {
	f := newFixture(t, testConfig())
	f.activate(t)

	f.emitActivity(t, activityRow("ev-1", "u1", model.EventCheckin, f.clock.Now()))
	waitFor(t, "pulse", func() bool { return len(f.engine.ActivePulses()) == 1 })

	f.clock.Advance(2 * time.Second).MustWait(t.Context())

	if got := len(f.engine.ActivePulses()); got != 0 {
		t.Fatalf("pulse survived past its TTL: %d alive", got)
	}
	if got := len(f.engine.RecentFeed()); got != 1 {
		t.Fatalf("feed entry should outlive the pulse, got %d", got)
	}
}

func TestEngine_BackfillsBaselineFeed(t *testing.T) {
	f := newFixture(t, testConfig())
	now := f.clock.Now()
	f.activities.listRecentFn = func(ctx context.Context, limit int) ([]model.ActivityRow, error) {
		return []model.ActivityRow{
			activityRow("ev-2", "u2", model.EventLevelUp, now), // newest first
			activityRow("ev-1", "u1", model.EventCheckin, now.Add(-time.Minute)),
		}, nil
	}
	f.activate(t)

	feed := f.engine.RecentFeed()
	if len(feed) != 2 {
		t.Fatalf("expected backfilled feed of 2, got %d", len(feed))
	}
	if feed[0].Event.ID != "ev-2" || feed[1].Event.ID != "ev-1" {
		t.Fatalf("expected newest-first order, got %s, %s", feed[0].Event.ID, feed[1].Event.ID)
	}
}

func TestEngine_SessionNotificationTriggersPresenceRefresh(t *testing.T) {
	f := newFixture(t, testConfig())

	var refreshes atomic.Int64
	f.sessions.listFn = func(ctx context.Context, since time.Time) ([]model.UserSession, error) {
		refreshes.Add(1)
		return []model.UserSession{{UserID: "u1", CountryCode: "DE", LastSeen: f.clock.Now()}}, nil
	}
	f.activate(t)

	if refreshes.Load() != 1 {
		t.Fatalf("expected initial refresh on activation, got %d", refreshes.Load())
	}

	f.feed.emit(model.ChangeNotification{Table: model.TableUserSessions, Op: model.OpUpdate})

	waitFor(t, "presence refresh", func() bool { return refreshes.Load() >= 2 })

	snap := f.engine.CountryHeat()
	if de := snap.Countries["DE"]; de.OnlineCount != 1 {
		t.Fatalf("expected DE presence, got %+v", snap.Countries)
	}
}

func TestEngine_SubjectSnapshotsThroughFacade(t *testing.T) {
	f := newFixture(t, testConfig())
	last := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.users.listFn = func(ctx context.Context) ([]model.User, error) {
		return orderedUsers(), nil
	}
	f.users.getFn = func(ctx context.Context, id string) (*model.User, error) {
		return &model.User{ID: id, CurrentStreak: 7, LastCheckInAt: &last}, nil
	}
	f.activate(t)

	rank, err := f.engine.RankStatus(t.Context(), "B")
	if err != nil {
		t.Fatalf("RankStatus error: %v", err)
	}
	if rank.Rank != 2 || rank.XPToNext != 200 || rank.NextAheadID != "A" {
		t.Fatalf("unexpected rank status %+v", rank)
	}

	capSt, err := f.engine.DailyCap(t.Context(), "B")
	if err != nil {
		t.Fatalf("DailyCap error: %v", err)
	}
	if capSt.Cap != 150 || capSt.Capped {
		t.Fatalf("unexpected cap status %+v", capSt)
	}

	streak, err := f.engine.StreakStatus(t.Context(), "B")
	if err != nil {
		t.Fatalf("StreakStatus error: %v", err)
	}
	if streak.Milestone != 7 {
		t.Fatalf("expected milestone 7, got %+v", streak)
	}
}

func TestEngine_DeactivateIsIdempotent(t *testing.T) {
	f := newFixture(t, testConfig())
	if err := f.engine.Activate(t.Context()); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	f.engine.Deactivate()
	f.engine.Deactivate() // must not panic or block

	if err := f.engine.Activate(t.Context()); err == nil {
		t.Fatal("expected re-activation of a torn-down engine to fail")
	}
}

func TestEngine_ActivateTwiceRejected(t *testing.T) {
	f := newFixture(t, testConfig())
	f.activate(t)

	if err := f.engine.Activate(t.Context()); err != ErrEngineActive {
		t.Fatalf("expected ErrEngineActive, got %v", err)
	}
}
