package model

import "time"

// User is the subject profile row; XP drives the global ranking.
type User struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Username      string     `gorm:"size:64;not null" json:"username"`
	XP            int64      `gorm:"not null;default:0;index" json:"xp"`
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty"`
	CountryCode   string     `gorm:"size:2" json:"country_code,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// RankHistory is a stored historical rank snapshot for a user.
type RankHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:36;not null;index" json:"user_id"`
	Rank       int       `gorm:"not null" json:"rank"`
	RecordedAt time.Time `gorm:"not null;index" json:"recorded_at"`
}

func (RankHistory) TableName() string { return "rank_history" }

// RankStatus is the derived competitive-rank view for one subject.
// Rank is 1-based; Ranked is false when the subject is absent from the
// ordered set, in which case every derived field is zeroed.
type RankStatus struct {
	SubjectID     string `json:"subject_id"`
	Ranked        bool   `json:"ranked"`
	Rank          int    `json:"rank,omitempty"`
	XPToNext      int64  `json:"xp_to_next,omitempty"`
	NextAheadID   string `json:"next_ahead_id,omitempty"`
	NextAheadName string `json:"next_ahead_name,omitempty"`
	PriorRank     *int   `json:"prior_rank,omitempty"`
	Delta         int    `json:"delta"` // positive = improvement
}

// DailyCapStatus reports a subject's XP earned today against the daily cap.
type DailyCapStatus struct {
	SubjectID string `json:"subject_id"`
	Earned    int64  `json:"earned"`
	Cap       int64  `json:"cap"`
	Remaining int64  `json:"remaining"`
	Capped    bool   `json:"capped"`
}

// StreakStatus flags risk and milestone conditions for a subject's streak.
// Milestone is 0 when the current length is not a milestone.
type StreakStatus struct {
	SubjectID       string `json:"subject_id"`
	StreakLength    int    `json:"streak_length"`
	CheckedInToday  bool   `json:"checked_in_today"`
	MissedYesterday bool   `json:"missed_yesterday"`
	AtRisk          bool   `json:"at_risk"`
	Milestone       int    `json:"milestone,omitempty"`
}
