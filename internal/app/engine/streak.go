package engine

import (
	"time"

	"github.com/habitloop/LivePulse/internal/app/model"
)

// Streak lengths that count as milestones, ascending.
var streakMilestones = []int{7, 14, 30, 60, 100, 200, 365}

// EvaluateStreak derives risk and milestone flags from a subject's last
// check-in and current streak length. Pure function; calendar boundaries are
// taken in now's location.
func EvaluateStreak(subjectID string, lastCheckIn *time.Time, streakLen int, now time.Time) model.StreakStatus {
	loc := now.Location()
	midnightToday := localMidnight(now, loc)
	midnightYesterday := midnightToday.AddDate(0, 0, -1)

	st := model.StreakStatus{
		SubjectID:    subjectID,
		StreakLength: streakLen,
	}

	if lastCheckIn != nil {
		last := lastCheckIn.In(loc)
		st.CheckedInToday = !last.Before(midnightToday)
		// A gap of 2+ calendar days.
		st.MissedYesterday = last.Before(midnightYesterday)
	}

	st.AtRisk = !st.CheckedInToday && now.In(loc).Hour() >= 18 && streakLen > 0

	for _, m := range streakMilestones {
		if streakLen == m {
			st.Milestone = m
			break
		}
	}

	return st
}
