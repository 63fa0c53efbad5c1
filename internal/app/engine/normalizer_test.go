package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/habitloop/LivePulse/internal/app/model"
)

func validRow() model.ActivityRow {
	return model.ActivityRow{
		ID:        "ev-1",
		UserID:    "u1",
		Username:  "alice",
		EventType: "checkin",
		CreatedAt: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
	}
}

func TestNormalizer_ResolvesKnownCountry(t *testing.T) {
	row := validRow()
	row.CountryCode = "jp"

	ev, err := NewNormalizer(nil).Normalize(row)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if ev.CountryCode != "JP" || ev.CountryName != "Japan" || ev.Flag == "" {
		t.Fatalf("expected resolved Japan, got %+v", ev)
	}
	if ev.Lat == 0 && ev.Lng == 0 {
		t.Fatal("expected centroid coordinates")
	}
}

func TestNormalizer_UnknownCodeFallsBack(t *testing.T) {
	row := validRow()
	row.CountryCode = "ZZ"

	ev, err := NewNormalizer(nil).Normalize(row)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if ev.CountryCode != "US" {
		t.Fatalf("expected fallback US for unknown code, got %s", ev.CountryCode)
	}
}

func TestNormalizer_MissingCountryGetsRandom(t *testing.T) {
	ev, err := NewNormalizer(nil).Normalize(validRow())
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if ev.CountryCode == "" || ev.CountryName == "" || ev.Flag == "" {
		t.Fatalf("expected a synthesized country, got %+v", ev)
	}
}

func TestNormalizer_MalformedRowsRejected(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.ActivityRow)
	}{
		{"missing id", func(r *model.ActivityRow) { r.ID = "" }},
		{"missing subject", func(r *model.ActivityRow) { r.UserID = "" }},
		{"missing type", func(r *model.ActivityRow) { r.EventType = "" }},
		{"zero timestamp", func(r *model.ActivityRow) { r.CreatedAt = time.Time{} }},
	}
	n := NewNormalizer(nil)

	for _, tc := range cases {
		row := validRow()
		tc.mutate(&row)
		if _, err := n.Normalize(row); !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("%s: expected ErrMalformedEvent, got %v", tc.name, err)
		}
	}
}

func TestNormalizer_DisplayNameFallbacks(t *testing.T) {
	row := validRow()
	row.Username = ""

	resolver := func(subjectID string) (string, bool) {
		if subjectID == "u1" {
			return "looked-up", true
		}
		return "", false
	}

	ev, err := NewNormalizer(resolver).Normalize(row)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if ev.Username != "looked-up" {
		t.Fatalf("expected resolver name, got %q", ev.Username)
	}

	ev, err = NewNormalizer(nil).Normalize(row)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if ev.Username != "Anonymous" {
		t.Fatalf("expected Anonymous fallback, got %q", ev.Username)
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		ev   model.ActivityEvent
		want string
	}{
		{model.ActivityEvent{Username: "alice", Type: model.EventCheckin}, "alice checked in"},
		{model.ActivityEvent{Username: "alice", Type: model.EventCheckin, Meta: model.EventMeta{StreakLength: 12}}, "alice checked in (12 day streak)"},
		{model.ActivityEvent{Username: "bob", Type: model.EventLevelUp, Meta: model.EventMeta{Level: 9}}, "bob reached level 9"},
		{model.ActivityEvent{Username: "bob", Type: model.EventLevelUp}, "bob leveled up"},
		{model.ActivityEvent{Username: "carol", Type: model.EventStreak, Meta: model.EventMeta{StreakLength: 7}}, "carol hit a 7 day streak"},
		{model.ActivityEvent{Username: "carol", Type: model.EventGoalCreated, Meta: model.EventMeta{GoalTitle: "run 5k"}}, "carol set a new goal: run 5k"},
		{model.ActivityEvent{Username: "dan", Type: model.EventGoalCompleted}, "dan completed a goal"},
		{model.ActivityEvent{Username: "dan", Type: model.EventLogin}, "dan is online"},
		{model.ActivityEvent{Username: "eve", Type: "badge_earned"}, "eve badge_earned"},
		{model.ActivityEvent{Type: model.EventCheckin}, "Anonymous checked in"},
	}

	for _, tc := range cases {
		if got := Describe(tc.ev); got != tc.want {
			t.Fatalf("Describe(%s) = %q, want %q", tc.ev.Type, got, tc.want)
		}
	}
}
