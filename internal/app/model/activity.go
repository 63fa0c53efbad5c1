package model

import "time"

// EventType enumerates the activity event kinds the engine understands.
// Unknown types are still carried through the feed with a generic description.
type EventType string

const (
	EventCheckin       EventType = "checkin"
	EventLevelUp       EventType = "level_up"
	EventStreak        EventType = "streak"
	EventGoalCreated   EventType = "goal_created"
	EventGoalCompleted EventType = "goal_completed"
	EventLogin         EventType = "login"
)

// EventMeta carries the optional per-type payload of an activity event.
// Unknown fields in the stored JSON are ignored on decode.
type EventMeta struct {
	XP           int    `json:"xp,omitempty"`
	Level        int    `json:"level,omitempty"`
	StreakLength int    `json:"streak_length,omitempty"`
	GoalTitle    string `json:"goal_title,omitempty"`
}

// ActivityRow is the persisted live_activity record as written by the ingest
// path and as delivered inside change-feed notifications.
type ActivityRow struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;not null;index" json:"user_id"`
	Username    string    `gorm:"size:64" json:"username"`
	EventType   string    `gorm:"size:32;not null;index" json:"event_type"`
	Meta        EventMeta `gorm:"serializer:json" json:"meta"`
	CountryCode string    `gorm:"size:2" json:"country_code,omitempty"`
	CountryName string    `gorm:"size:64" json:"country_name,omitempty"`
	CreatedAt   time.Time `gorm:"index;autoCreateTime" json:"created_at"`
}

// TableName pins the table name used both by GORM and the change feed.
func (ActivityRow) TableName() string { return TableLiveActivity }

// ActivityEvent is the canonical, normalized form of a raw activity row.
// Country fields are always resolved; the struct is immutable once built.
type ActivityEvent struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	Username    string    `json:"username"`
	Type        EventType `json:"type"`
	Meta        EventMeta `json:"meta"`
	CountryCode string    `json:"country_code"`
	CountryName string    `json:"country_name"`
	Flag        string    `json:"flag"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	CreatedAt   time.Time `json:"created_at"`
}

// FeedEntry is an ActivityEvent as it appears in the recent-activity feed.
// AddedAt is the local arrival time, distinct from Event.CreatedAt.
type FeedEntry struct {
	Event       ActivityEvent `json:"event"`
	Description string        `json:"description"`
	AddedAt     time.Time     `json:"added_at"`
}

// Pulse is a short-lived visualization marker derived 1:1 from an event
// with resolvable coordinates.
type Pulse struct {
	ID         string    `json:"id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ColorClass string    `json:"color_class"`
	StartedAt  time.Time `json:"started_at"`
}
