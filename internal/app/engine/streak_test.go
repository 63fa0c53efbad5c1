package engine

import (
	"testing"
	"time"
)

func TestEvaluateStreak_MissedYesterdayAndAtRisk(t *testing.T) {
	now := time.Date(2026, 3, 12, 20, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) // two calendar days ago

	st := EvaluateStreak("u1", &last, 5, now)

	if st.CheckedInToday {
		t.Fatal("expected CheckedInToday=false")
	}
	if !st.MissedYesterday {
		t.Fatal("expected MissedYesterday=true")
	}
	if !st.AtRisk {
		t.Fatal("expected AtRisk=true (streak>0, not checked in today, hour>=18)")
	}
	if st.Milestone != 0 {
		t.Fatalf("expected no milestone, got %d", st.Milestone)
	}
}

func TestEvaluateStreak_CheckedInToday(t *testing.T) {
	now := time.Date(2026, 3, 12, 20, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 12, 7, 30, 0, 0, time.UTC)

	st := EvaluateStreak("u1", &last, 12, now)

	if !st.CheckedInToday {
		t.Fatal("expected CheckedInToday=true")
	}
	if st.MissedYesterday {
		t.Fatal("expected MissedYesterday=false")
	}
	if st.AtRisk {
		t.Fatal("a subject checked in today is never at risk")
	}
}

func TestEvaluateStreak_NotAtRiskBeforeEvening(t *testing.T) {
	now := time.Date(2026, 3, 12, 17, 59, 0, 0, time.UTC)
	last := time.Date(2026, 3, 11, 22, 0, 0, 0, time.UTC) // yesterday

	st := EvaluateStreak("u1", &last, 3, now)

	if st.AtRisk {
		t.Fatal("expected AtRisk=false before local hour 18")
	}
	if st.MissedYesterday {
		t.Fatal("a check-in yesterday is not a missed day")
	}
}

func TestEvaluateStreak_ZeroStreakNeverAtRisk(t *testing.T) {
	now := time.Date(2026, 3, 12, 22, 0, 0, 0, time.UTC)

	st := EvaluateStreak("u1", nil, 0, now)

	if st.AtRisk {
		t.Fatal("expected AtRisk=false with no streak")
	}
	if st.CheckedInToday || st.MissedYesterday {
		t.Fatal("nil last check-in sets neither calendar flag")
	}
}

func TestEvaluateStreak_Milestones(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		streak    int
		milestone int
	}{
		{6, 0}, {7, 7}, {8, 0}, {30, 30}, {100, 100}, {364, 0}, {365, 365},
	}
	for _, tc := range cases {
		st := EvaluateStreak("u1", &last, tc.streak, now)
		if st.Milestone != tc.milestone {
			t.Fatalf("streak %d: expected milestone %d, got %d", tc.streak, tc.milestone, st.Milestone)
		}
	}
}
