package engine

import (
	"errors"
	"fmt"

	"github.com/habitloop/LivePulse/internal/app/geo"
	"github.com/habitloop/LivePulse/internal/app/model"
)

// ErrMalformedEvent marks a raw feed record missing required fields. Such
// records are dropped from every derived view.
var ErrMalformedEvent = errors.New("malformed activity event")

// NameResolver maps a subject id to a display name. May report false when
// no name is known; normalization then degrades to "Anonymous".
type NameResolver func(subjectID string) (string, bool)

// Normalizer turns raw activity rows into canonical ActivityEvents with the
// country always resolved. It has no side effects and no failure modes
// beyond rejecting malformed input.
type Normalizer struct {
	names NameResolver
}

// NewNormalizer returns a normalizer. names may be nil.
func NewNormalizer(names NameResolver) *Normalizer {
	return &Normalizer{names: names}
}

// Normalize validates and canonicalizes a raw row. A record with a country
// code gets reference data for that code (unknown codes resolve to the
// fallback entry); a record without one gets a uniformly-random country so
// downstream consumers never see null coordinates.
func (n *Normalizer) Normalize(row model.ActivityRow) (model.ActivityEvent, error) {
	if row.ID == "" || row.UserID == "" || row.EventType == "" || row.CreatedAt.IsZero() {
		return model.ActivityEvent{}, ErrMalformedEvent
	}

	var country geo.Country
	if row.CountryCode != "" {
		country, _ = geo.Lookup(row.CountryCode)
	} else {
		country = geo.Random()
	}

	name := country.Name
	if row.CountryName != "" {
		name = row.CountryName
	}

	return model.ActivityEvent{
		ID:          row.ID,
		SubjectID:   row.UserID,
		Username:    n.displayName(row),
		Type:        model.EventType(row.EventType),
		Meta:        row.Meta,
		CountryCode: country.Code,
		CountryName: name,
		Flag:        country.Flag,
		Lat:         country.Lat,
		Lng:         country.Lng,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (n *Normalizer) displayName(row model.ActivityRow) string {
	if row.Username != "" {
		return row.Username
	}
	if n.names != nil {
		if name, ok := n.names(row.UserID); ok && name != "" {
			return name
		}
	}
	return "Anonymous"
}

// Describe renders the human-readable feed line for an event. Total over all
// inputs: an unrecognized type falls back to "<name> <type>".
func Describe(ev model.ActivityEvent) string {
	name := ev.Username
	if name == "" {
		name = "Anonymous"
	}

	switch ev.Type {
	case model.EventCheckin:
		if ev.Meta.StreakLength > 1 {
			return fmt.Sprintf("%s checked in (%d day streak)", name, ev.Meta.StreakLength)
		}
		return fmt.Sprintf("%s checked in", name)
	case model.EventLevelUp:
		if ev.Meta.Level > 0 {
			return fmt.Sprintf("%s reached level %d", name, ev.Meta.Level)
		}
		return fmt.Sprintf("%s leveled up", name)
	case model.EventStreak:
		if ev.Meta.StreakLength > 0 {
			return fmt.Sprintf("%s hit a %d day streak", name, ev.Meta.StreakLength)
		}
		return fmt.Sprintf("%s started a streak", name)
	case model.EventGoalCreated:
		if ev.Meta.GoalTitle != "" {
			return fmt.Sprintf("%s set a new goal: %s", name, ev.Meta.GoalTitle)
		}
		return fmt.Sprintf("%s set a new goal", name)
	case model.EventGoalCompleted:
		if ev.Meta.GoalTitle != "" {
			return fmt.Sprintf("%s completed a goal: %s", name, ev.Meta.GoalTitle)
		}
		return fmt.Sprintf("%s completed a goal", name)
	case model.EventLogin:
		return fmt.Sprintf("%s is online", name)
	default:
		return fmt.Sprintf("%s %s", name, ev.Type)
	}
}

// PulseColor maps an event type to the visualization color class of its pulse.
func PulseColor(t model.EventType) string {
	switch t {
	case model.EventCheckin:
		return "pulse-green"
	case model.EventLevelUp:
		return "pulse-gold"
	case model.EventStreak:
		return "pulse-orange"
	case model.EventGoalCreated, model.EventGoalCompleted:
		return "pulse-blue"
	default:
		return "pulse-white"
	}
}
