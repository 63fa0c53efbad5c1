package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/habitloop/LivePulse/internal/app/geo"
	"github.com/habitloop/LivePulse/internal/app/model"
)

// Mode selects how a CountryHeat instance is populated. The two modes never
// mix within one instance.
type Mode string

const (
	// ModeRollup builds the aggregate from precomputed daily counters.
	ModeRollup Mode = "rollup"
	// ModePresence builds the aggregate from currently-online sessions.
	ModePresence Mode = "presence"
)

// Rollup scoring weights.
const (
	scoreWeightCheckin = 2
	scoreWeightLevelUp = 3
	scoreWeightActive  = 1
)

// RollupSource reads daily per-country counter rows.
type RollupSource interface {
	ListByDay(ctx context.Context, day string) ([]model.CountryRollup, error)
}

// SessionSource reads recently-active session rows.
type SessionSource interface {
	ListActiveSince(ctx context.Context, since time.Time) ([]model.UserSession, error)
}

// CountryHeat maintains the per-country score map and the single
// highest-scoring country. Each refresh rebuilds the map from scratch, so
// stale countries are replaced rather than merged. Fetches run outside the
// lock; the finished map is swapped in atomically.
type CountryHeat struct {
	mode     Mode
	rollups  RollupSource
	sessions SessionSource
	users    UserSource
	clock    quartz.Clock
	log      *zap.Logger

	sf singleflight.Group

	mu          sync.RWMutex
	byCode      map[string]model.CountryAggregate
	top         string
	refreshedAt time.Time
}

// NewCountryHeat builds an aggregator in the given mode.
func NewCountryHeat(mode Mode, rollups RollupSource, sessions SessionSource, users UserSource, clk quartz.Clock, log *zap.Logger) *CountryHeat {
	if clk == nil {
		clk = quartz.NewReal()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CountryHeat{
		mode:     mode,
		rollups:  rollups,
		sessions: sessions,
		users:    users,
		clock:    clk,
		log:      log,
		byCode:   map[string]model.CountryAggregate{},
	}
}

// Mode returns the configured population mode.
func (h *CountryHeat) Mode() Mode { return h.mode }

// RefreshRollup rebuilds the aggregate from the rollup rows for dateKey.
// Concurrent triggers collapse to a single in-flight refresh.
func (h *CountryHeat) RefreshRollup(ctx context.Context, dateKey string) error {
	if h.mode != ModeRollup {
		return fmt.Errorf("country heat: rollup refresh on %q aggregator", h.mode)
	}

	_, err, _ := h.sf.Do("refresh", func() (any, error) {
		rows, err := h.rollups.ListByDay(ctx, dateKey)
		if err != nil {
			return nil, fmt.Errorf("country heat: list rollups: %w", err)
		}

		byCode := make(map[string]model.CountryAggregate, len(rows))
		top := ""
		for _, row := range rows {
			ref, _ := geo.Lookup(row.CountryCode)
			agg := byCode[ref.Code]
			if agg.Code == "" {
				agg = newAggregate(ref)
			}
			agg.CheckinCount += row.Checkins
			agg.LevelUpCount += row.LevelUps
			agg.ActiveUserCount += row.ActiveUsers
			agg.Score = agg.CheckinCount*scoreWeightCheckin +
				agg.LevelUpCount*scoreWeightLevelUp +
				agg.ActiveUserCount*scoreWeightActive
			byCode[ref.Code] = agg

			// First maximum encountered wins on ties.
			if top == "" || agg.Score > byCode[top].Score {
				top = ref.Code
			}
		}

		h.swap(byCode, top)
		return nil, nil
	})
	return err
}

// RefreshPresence rebuilds the aggregate from sessions seen within window.
// Session subjects are resolved to a country via their stored profile,
// falling back to a uniformly-random country when unset.
func (h *CountryHeat) RefreshPresence(ctx context.Context, window time.Duration) error {
	if h.mode != ModePresence {
		return fmt.Errorf("country heat: presence refresh on %q aggregator", h.mode)
	}

	_, err, _ := h.sf.Do("refresh", func() (any, error) {
		since := h.clock.Now().Add(-window)
		active, err := h.sessions.ListActiveSince(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("country heat: list sessions: %w", err)
		}

		profiles := h.resolveProfiles(ctx, active)

		byCode := make(map[string]model.CountryAggregate)
		top := ""
		for _, s := range active {
			code := s.CountryCode
			if code == "" {
				code = profiles[s.UserID]
			}

			var ref geo.Country
			if code == "" {
				ref = geo.Random()
			} else {
				ref, _ = geo.Lookup(code)
			}

			agg := byCode[ref.Code]
			if agg.Code == "" {
				agg = newAggregate(ref)
			}
			agg.OnlineCount++
			agg.Score = agg.OnlineCount
			byCode[ref.Code] = agg

			if top == "" || agg.Score > byCode[top].Score {
				top = ref.Code
			}
		}

		h.swap(byCode, top)
		return nil, nil
	})
	return err
}

// resolveProfiles batch-loads profile countries for sessions that carry none.
// A failed lookup degrades to the random-country fallback rather than
// failing the refresh.
func (h *CountryHeat) resolveProfiles(ctx context.Context, active []model.UserSession) map[string]string {
	var missing []string
	for _, s := range active {
		if s.CountryCode == "" {
			missing = append(missing, s.UserID)
		}
	}
	if len(missing) == 0 || h.users == nil {
		return nil
	}

	profiles, err := h.users.CountryCodes(ctx, missing)
	if err != nil {
		h.log.Warn("country heat: profile country lookup failed", zap.Error(err))
		return nil
	}
	return profiles
}

func (h *CountryHeat) swap(byCode map[string]model.CountryAggregate, top string) {
	now := h.clock.Now()
	h.mu.Lock()
	h.byCode = byCode
	h.top = top
	h.refreshedAt = now
	h.mu.Unlock()
}

// Snapshot returns a deep copy of the aggregate map and the most-active
// country (nil when the map is empty).
func (h *CountryHeat) Snapshot() model.CountrySnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := model.CountrySnapshot{
		Countries:   make(map[string]model.CountryAggregate, len(h.byCode)),
		RefreshedAt: h.refreshedAt,
	}
	for code, agg := range h.byCode {
		out.Countries[code] = agg
	}
	if top, ok := h.byCode[h.top]; ok {
		out.MostActive = &top
	}
	return out
}

func newAggregate(ref geo.Country) model.CountryAggregate {
	return model.CountryAggregate{
		Code: ref.Code,
		Name: ref.Name,
		Flag: ref.Flag,
		Lat:  ref.Lat,
		Lng:  ref.Lng,
	}
}
