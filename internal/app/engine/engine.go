// Package engine implements the live activity aggregation core: it turns the
// upstream change feed into four bounded, continuously-updated views (recent
// feed, visualization pulses, country heat, rank delta) plus the per-subject
// daily-cap and streak trackers, and exposes immutable snapshots of each.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/habitloop/LivePulse/internal/app/model"
	"github.com/habitloop/LivePulse/internal/app/window"
)

// ChangeFeed is a cancellable subscription to the upstream change stream.
// The returned channel closes once ctx is cancelled and all in-flight
// notifications have been delivered.
type ChangeFeed interface {
	Subscribe(ctx context.Context, tables []string) (<-chan model.ChangeNotification, error)
}

// Config bounds every window and timer owned by the engine.
type Config struct {
	FeedCapacity      int
	FeedTTL           time.Duration
	PulseCapacity     int
	PulseTTL          time.Duration
	DebounceWindow    time.Duration
	DebounceRetention time.Duration
	SweepInterval     time.Duration
	RefreshInterval   time.Duration
	PresenceWindow    time.Duration
	SubjectRetention  time.Duration
	DailyXPCap        int64
	CountryMode       Mode
	Location          *time.Location
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FeedCapacity:      20,
		FeedTTL:           10 * time.Minute,
		PulseCapacity:     100,
		PulseTTL:          2 * time.Second,
		DebounceWindow:    time.Second,
		DebounceRetention: 5 * time.Second,
		SweepInterval:     3 * time.Second,
		RefreshInterval:   30 * time.Second,
		PresenceWindow:    5 * time.Minute,
		SubjectRetention:  10 * time.Minute,
		DailyXPCap:        DefaultDailyXPCap,
		CountryMode:       ModePresence,
		Location:          time.Local,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FeedCapacity <= 0 {
		c.FeedCapacity = d.FeedCapacity
	}
	if c.FeedTTL <= 0 {
		c.FeedTTL = d.FeedTTL
	}
	if c.PulseCapacity <= 0 {
		c.PulseCapacity = d.PulseCapacity
	}
	if c.PulseTTL <= 0 {
		c.PulseTTL = d.PulseTTL
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = d.DebounceWindow
	}
	if c.DebounceRetention <= 0 {
		c.DebounceRetention = d.DebounceRetention
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.PresenceWindow <= 0 {
		c.PresenceWindow = d.PresenceWindow
	}
	if c.SubjectRetention <= 0 {
		c.SubjectRetention = d.SubjectRetention
	}
	if c.DailyXPCap <= 0 {
		c.DailyXPCap = d.DailyXPCap
	}
	if c.CountryMode == "" {
		c.CountryMode = d.CountryMode
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	return c
}

// Deps bundles the constructor-injected collaborators of the engine.
type Deps struct {
	Logger     *zap.Logger
	Clock      quartz.Clock
	Metrics    *Metrics
	Feed       ChangeFeed
	Activities ActivitySource
	Users      UserSource
	History    RankHistorySource
	Rollups    RollupSource
	Sessions   SessionSource
	Names      NameResolver
}

// ErrEngineActive is returned by Activate on an already-active engine.
var ErrEngineActive = errors.New("engine already active")

// subjectView is the cached rank/cap/streak view for one watched subject.
type subjectView struct {
	rank        model.RankStatus
	cap         model.DailyCapStatus
	streak      model.StreakStatus
	refreshedAt time.Time
	accessedAt  time.Time
}

// Engine owns all window and aggregate state for the lifetime of its
// subscription. Consumers only ever receive copies.
type Engine struct {
	cfg     Config
	log     *zap.Logger
	clock   quartz.Clock
	metrics *Metrics

	feed       ChangeFeed
	activities ActivitySource
	users      UserSource

	normalizer *Normalizer
	debounce   *Debouncer
	feedWin    *window.Capped[model.FeedEntry]
	pulses     *window.TTLSet[model.Pulse]
	countries  *CountryHeat
	rank       *RankTracker
	caps       *DailyCapTracker

	mu     sync.Mutex
	active bool
	done   bool
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subjMu   sync.Mutex
	subjects map[string]*subjectView
}

// New wires an engine from its dependencies. The engine is inert until
// Activate is called.
func New(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = quartz.NewReal()
	}
	metrics := deps.Metrics

	e := &Engine{
		cfg:        cfg,
		log:        log,
		clock:      clk,
		metrics:    metrics,
		feed:       deps.Feed,
		activities: deps.Activities,
		users:      deps.Users,
		normalizer: NewNormalizer(deps.Names),
		debounce:   NewDebouncer(cfg.DebounceWindow, cfg.DebounceRetention, clk),
		feedWin:    window.NewCapped[model.FeedEntry](cfg.FeedCapacity, clk),
		countries:  NewCountryHeat(cfg.CountryMode, deps.Rollups, deps.Sessions, deps.Users, clk, log),
		rank:       NewRankTracker(deps.Users, deps.History, cfg.Location, clk),
		caps:       NewDailyCapTracker(deps.Activities, cfg.DailyXPCap, cfg.Location, clk),
		subjects:   map[string]*subjectView{},
	}
	e.pulses = window.NewTTLSet[model.Pulse](cfg.PulseCapacity, clk, e.onPulseEvicted)
	return e
}

func (e *Engine) onPulseEvicted(string) {
	if e.metrics != nil {
		e.metrics.PulsesExpired.Inc()
		e.metrics.PulseCount.Set(float64(e.pulses.Len()))
	}
}

// Activate subscribes to the change feed, backfills a baseline feed window,
// performs the initial aggregate refresh and starts the sweep and refresh
// tickers. An engine activates at most once.
func (e *Engine) Activate(ctx context.Context) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return ErrEngineActive
	}
	if e.done {
		e.mu.Unlock()
		return errors.New("engine already deactivated")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.active = true
	e.mu.Unlock()

	tables := []string{model.TableLiveActivity, model.TableUserSessions, model.TableCountryActivity}
	ch, err := e.feed.Subscribe(runCtx, tables)
	if err != nil {
		cancel()
		e.mu.Lock()
		e.active = false
		e.mu.Unlock()
		return err
	}

	// Baseline: the feed is rebuilt from the store, never assumed continuous
	// with a previous subscription.
	e.backfillFeed(ctx)
	e.refreshCountries(ctx)

	e.wg.Add(1)
	go e.consumeLoop(runCtx, ch)

	e.clock.TickerFunc(runCtx, e.cfg.SweepInterval, func() error {
		e.sweep()
		return nil
	}, "engine-sweep")
	e.clock.TickerFunc(runCtx, e.cfg.RefreshInterval, func() error {
		e.refreshCountries(runCtx)
		e.refreshWatchedSubjects(runCtx)
		return nil
	}, "engine-refresh")

	e.log.Info("live activity engine activated",
		zap.String("country_mode", string(e.cfg.CountryMode)),
		zap.Int("feed_capacity", e.cfg.FeedCapacity),
		zap.Duration("pulse_ttl", e.cfg.PulseTTL))
	return nil
}

// Deactivate tears the engine down: it cancels the subscription and all
// tickers, synchronously stops every pending pulse removal and waits for the
// ingestion loop to drain. Safe to call repeatedly.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.done = true
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.pulses.Close()
	e.wg.Wait()
	e.log.Info("live activity engine deactivated")
}

func (e *Engine) backfillFeed(ctx context.Context) {
	rows, err := e.activities.ListRecent(ctx, e.cfg.FeedCapacity)
	if err != nil {
		e.countFetchFailure("feed")
		e.log.Warn("feed backfill failed, starting empty", zap.Error(err))
		return
	}

	// Rows arrive newest first; push oldest first so the window ends up
	// ordered newest first.
	for i := len(rows) - 1; i >= 0; i-- {
		ev, err := e.normalizer.Normalize(rows[i])
		if err != nil {
			continue
		}
		e.feedWin.Push(model.FeedEntry{
			Event:       ev,
			Description: Describe(ev),
			AddedAt:     e.clock.Now(),
		})
	}
	if e.metrics != nil {
		e.metrics.FeedSize.Set(float64(e.feedWin.Len()))
	}
}

func (e *Engine) consumeLoop(ctx context.Context, ch <-chan model.ChangeNotification) {
	defer e.wg.Done()
	for n := range ch {
		e.handleNotification(ctx, n)
	}
}

func (e *Engine) handleNotification(ctx context.Context, n model.ChangeNotification) {
	switch n.Table {
	case model.TableLiveActivity:
		if n.Op != model.OpInsert {
			return
		}
		e.ingestActivity(ctx, n.NewRow)
	case model.TableUserSessions:
		if e.cfg.CountryMode == ModePresence {
			go e.refreshCountries(ctx)
		}
	case model.TableCountryActivity:
		if e.cfg.CountryMode == ModeRollup {
			go e.refreshCountries(ctx)
		}
	}
}

// ingestActivity runs the full admission path for one raw activity row. A
// malformed or suppressed record touches no view at all.
func (e *Engine) ingestActivity(ctx context.Context, raw json.RawMessage) {
	var row model.ActivityRow
	if err := json.Unmarshal(raw, &row); err != nil {
		e.countSuppressed(SuppressMalformed)
		return
	}

	ev, err := e.normalizer.Normalize(row)
	if err != nil {
		e.countSuppressed(SuppressMalformed)
		return
	}

	if !e.debounce.ShouldAdmit(ev.SubjectID, ev.Type) {
		e.countSuppressed(SuppressDebounce)
		return
	}

	now := e.clock.Now()
	e.feedWin.Push(model.FeedEntry{
		Event:       ev,
		Description: Describe(ev),
		AddedAt:     now,
	})
	e.pulses.Add(ev.ID, model.Pulse{
		ID:         ev.ID,
		Lat:        ev.Lat,
		Lng:        ev.Lng,
		ColorClass: PulseColor(ev.Type),
		StartedAt:  now,
	}, e.cfg.PulseTTL)

	if e.metrics != nil {
		e.metrics.EventsIngested.Inc()
		e.metrics.FeedSize.Set(float64(e.feedWin.Len()))
		e.metrics.PulseCount.Set(float64(e.pulses.Len()))
	}

	e.invalidateSubject(ctx, ev.SubjectID)
}

// refreshCountries runs one aggregate refresh cycle for the configured mode.
// Failures leave the last-known view in place.
func (e *Engine) refreshCountries(ctx context.Context) {
	var err error
	switch e.cfg.CountryMode {
	case ModeRollup:
		err = e.countries.RefreshRollup(ctx, dateKey(e.clock.Now(), e.cfg.Location))
	case ModePresence:
		err = e.countries.RefreshPresence(ctx, e.cfg.PresenceWindow)
	}
	if err != nil {
		e.countFetchFailure("countries")
		e.log.Warn("country refresh failed, keeping stale view", zap.Error(err))
		return
	}
	if e.metrics != nil {
		e.metrics.Refreshes.WithLabelValues("countries").Inc()
	}
}

func (e *Engine) sweep() {
	e.debounce.Sweep()
	e.feedWin.EvictOlderThan(e.cfg.FeedTTL)

	cutoff := e.clock.Now().Add(-e.cfg.SubjectRetention)
	e.subjMu.Lock()
	for id, v := range e.subjects {
		if v.accessedAt.Before(cutoff) {
			delete(e.subjects, id)
		}
	}
	e.subjMu.Unlock()

	if e.metrics != nil {
		e.metrics.FeedSize.Set(float64(e.feedWin.Len()))
		e.metrics.PulseCount.Set(float64(e.pulses.Len()))
		e.metrics.DebounceKeys.Set(float64(e.debounce.Len()))
	}
}

// RecentFeed returns an immutable copy of the feed, newest first.
func (e *Engine) RecentFeed() []model.FeedEntry {
	return e.feedWin.Snapshot()
}

// ActivePulses returns the currently-live pulses.
func (e *Engine) ActivePulses() []model.Pulse {
	return e.pulses.Snapshot()
}

// CountryHeat returns the current per-country aggregate snapshot.
func (e *Engine) CountryHeat() model.CountrySnapshot {
	return e.countries.Snapshot()
}

// RankStatus returns the subject's rank view, computing it when the cached
// copy is missing or stale.
func (e *Engine) RankStatus(ctx context.Context, subjectID string) (model.RankStatus, error) {
	v, err := e.subjectStatus(ctx, subjectID)
	if err != nil {
		return model.RankStatus{}, err
	}
	return v.rank, nil
}

// DailyCap returns the subject's daily XP cap view.
func (e *Engine) DailyCap(ctx context.Context, subjectID string) (model.DailyCapStatus, error) {
	v, err := e.subjectStatus(ctx, subjectID)
	if err != nil {
		return model.DailyCapStatus{}, err
	}
	return v.cap, nil
}

// StreakStatus returns the subject's streak risk/milestone view.
func (e *Engine) StreakStatus(ctx context.Context, subjectID string) (model.StreakStatus, error) {
	v, err := e.subjectStatus(ctx, subjectID)
	if err != nil {
		return model.StreakStatus{}, err
	}
	return v.streak, nil
}

// subjectStatus serves the cached view when fresh enough, otherwise
// recomputes it from the store. The cache makes the snapshot API cheap to
// poll between refresh cycles.
func (e *Engine) subjectStatus(ctx context.Context, subjectID string) (subjectView, error) {
	now := e.clock.Now()

	var stale subjectView
	haveStale := false

	e.subjMu.Lock()
	if cached, ok := e.subjects[subjectID]; ok {
		cached.accessedAt = now
		stale = *cached
		haveStale = true
		if now.Sub(cached.refreshedAt) < e.cfg.RefreshInterval {
			e.subjMu.Unlock()
			return stale, nil
		}
	}
	e.subjMu.Unlock()

	v, err := e.computeSubject(ctx, subjectID)
	if err != nil {
		// Degrade to the stale last-known view when the store is unreachable.
		if haveStale {
			e.log.Warn("subject view recompute failed, serving stale view",
				zap.String("subject_id", subjectID), zap.Error(err))
			return stale, nil
		}
		return subjectView{}, err
	}
	return v, nil
}

// computeSubject recomputes all three subject views and stores them.
func (e *Engine) computeSubject(ctx context.Context, subjectID string) (subjectView, error) {
	rank, err := e.rank.ComputeRank(ctx, subjectID)
	if err != nil {
		e.countFetchFailure("subject")
		return subjectView{}, err
	}

	capStatus, err := e.caps.XPToday(ctx, subjectID)
	if err != nil {
		e.countFetchFailure("subject")
		return subjectView{}, err
	}

	streak := model.StreakStatus{SubjectID: subjectID}
	user, err := e.users.GetByID(ctx, subjectID)
	if err == nil && user != nil {
		streak = EvaluateStreak(subjectID, user.LastCheckInAt, user.CurrentStreak, e.clock.Now().In(e.cfg.Location))
	}

	now := e.clock.Now()
	v := subjectView{
		rank:        rank,
		cap:         capStatus,
		streak:      streak,
		refreshedAt: now,
		accessedAt:  now,
	}

	e.subjMu.Lock()
	stored := v
	e.subjects[subjectID] = &stored
	e.subjMu.Unlock()

	if e.metrics != nil {
		e.metrics.Refreshes.WithLabelValues("subject").Inc()
	}
	return v, nil
}

// invalidateSubject recomputes a watched subject's view after one of its own
// qualifying events. Unwatched subjects are computed lazily on first read.
// The recompute runs off the ingestion path so the consume loop never blocks
// on store reads.
func (e *Engine) invalidateSubject(ctx context.Context, subjectID string) {
	e.subjMu.Lock()
	_, watched := e.subjects[subjectID]
	e.subjMu.Unlock()
	if !watched {
		return
	}
	go func() {
		if _, err := e.computeSubject(ctx, subjectID); err != nil {
			e.log.Warn("subject view refresh failed, keeping stale view",
				zap.String("subject_id", subjectID), zap.Error(err))
		}
	}()
}

// refreshWatchedSubjects recomputes every cached subject view on the coarse
// refresh tick.
func (e *Engine) refreshWatchedSubjects(ctx context.Context) {
	e.subjMu.Lock()
	ids := make([]string, 0, len(e.subjects))
	for id := range e.subjects {
		ids = append(ids, id)
	}
	e.subjMu.Unlock()

	for _, id := range ids {
		if _, err := e.computeSubject(ctx, id); err != nil {
			e.log.Warn("subject view refresh failed, keeping stale view",
				zap.String("subject_id", id), zap.Error(err))
		}
	}
}

func (e *Engine) countSuppressed(reason string) {
	if e.metrics != nil {
		e.metrics.EventsSuppressed.WithLabelValues(reason).Inc()
	}
}

func (e *Engine) countFetchFailure(view string) {
	if e.metrics != nil {
		e.metrics.FetchFailures.WithLabelValues(view).Inc()
	}
}
