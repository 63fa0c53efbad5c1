package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/habitloop/LivePulse/internal/app/model"
)

// UserSource is the read contract the engine needs over subject profiles.
type UserSource interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByXPDesc(ctx context.Context) ([]model.User, error)
	CountryCodes(ctx context.Context, ids []string) (map[string]string, error)
}

// RankHistorySource reads stored historical rank snapshots.
type RankHistorySource interface {
	// LatestSince returns the most recent snapshot for the user recorded on
	// or after since, or nil when none exists.
	LatestSince(ctx context.Context, userID string, since time.Time) (*model.RankHistory, error)
}

// RankTracker computes a subject's position in the global XP ordering and
// the delta against the stored historical snapshot. Read-only over the
// upstream store.
type RankTracker struct {
	users   UserSource
	history RankHistorySource
	loc     *time.Location
	clock   quartz.Clock
}

// NewRankTracker builds a tracker over the given sources.
func NewRankTracker(users UserSource, history RankHistorySource, loc *time.Location, clk quartz.Clock) *RankTracker {
	if loc == nil {
		loc = time.Local
	}
	if clk == nil {
		clk = quartz.NewReal()
	}
	return &RankTracker{users: users, history: history, loc: loc, clock: clk}
}

// ComputeRank performs a full ordered scan of subjects by descending XP.
// An absent subject yields Ranked=false with zeroed derived fields, not an
// error. Ties keep the store's stable order; that instability is a known,
// accepted limitation.
func (t *RankTracker) ComputeRank(ctx context.Context, subjectID string) (model.RankStatus, error) {
	ordered, err := t.users.ListByXPDesc(ctx)
	if err != nil {
		return model.RankStatus{}, fmt.Errorf("rank: list users: %w", err)
	}

	status := model.RankStatus{SubjectID: subjectID}

	idx := -1
	for i, u := range ordered {
		if u.ID == subjectID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return status, nil
	}

	status.Ranked = true
	status.Rank = idx + 1

	if idx > 0 {
		above := ordered[idx-1]
		status.XPToNext = above.XP - ordered[idx].XP
		status.NextAheadID = above.ID
		status.NextAheadName = above.Username
	}

	// Most recent snapshot dated on/after yesterday's local midnight.
	since := localMidnight(t.clock.Now(), t.loc).AddDate(0, 0, -1)
	prior, err := t.history.LatestSince(ctx, subjectID, since)
	if err != nil {
		return model.RankStatus{}, fmt.Errorf("rank: load prior snapshot: %w", err)
	}
	if prior != nil {
		priorRank := prior.Rank
		status.PriorRank = &priorRank
		status.Delta = priorRank - status.Rank
	}

	return status, nil
}
