package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/habitloop/LivePulse/internal/app/model"
)

// DefaultDailyXPCap is the fixed daily XP ceiling.
const DefaultDailyXPCap = 150

// Event types whose XP rewards count against the daily cap.
var capQualifyingTypes = []string{
	string(model.EventCheckin),
	string(model.EventLevelUp),
}

// ActivitySource is the read contract the engine needs over stored activity.
type ActivitySource interface {
	ListRecent(ctx context.Context, limit int) ([]model.ActivityRow, error)
	ListBySubjectSince(ctx context.Context, subjectID string, since time.Time, types []string) ([]model.ActivityRow, error)
}

// DailyCapTracker sums a subject's qualifying XP rewards since local
// midnight and reports the remaining allowance against the cap.
type DailyCapTracker struct {
	activities ActivitySource
	cap        int64
	loc        *time.Location
	clock      quartz.Clock
}

// NewDailyCapTracker builds a tracker; capXP <= 0 falls back to the default.
func NewDailyCapTracker(activities ActivitySource, capXP int64, loc *time.Location, clk quartz.Clock) *DailyCapTracker {
	if capXP <= 0 {
		capXP = DefaultDailyXPCap
	}
	if loc == nil {
		loc = time.Local
	}
	if clk == nil {
		clk = quartz.NewReal()
	}
	return &DailyCapTracker{activities: activities, cap: capXP, loc: loc, clock: clk}
}

// XPToday computes the subject's earned/remaining XP for the current local day.
func (t *DailyCapTracker) XPToday(ctx context.Context, subjectID string) (model.DailyCapStatus, error) {
	since := localMidnight(t.clock.Now(), t.loc)

	rows, err := t.activities.ListBySubjectSince(ctx, subjectID, since, capQualifyingTypes)
	if err != nil {
		return model.DailyCapStatus{}, fmt.Errorf("daily cap: list activity: %w", err)
	}

	var earned int64
	for _, row := range rows {
		earned += int64(row.Meta.XP)
	}

	remaining := t.cap - earned
	if remaining < 0 {
		remaining = 0
	}

	return model.DailyCapStatus{
		SubjectID: subjectID,
		Earned:    earned,
		Cap:       t.cap,
		Remaining: remaining,
		Capped:    earned >= t.cap,
	}, nil
}
