package model

import "time"

// CountryRollup is one precomputed daily aggregate row from country_activity.
type CountryRollup struct {
	CountryCode string `json:"country_code"`
	Day         string `json:"day"` // date key, 2006-01-02
	Checkins    int    `json:"checkins"`
	LevelUps    int    `json:"levelups"`
	ActiveUsers int    `json:"active_users"`
}

// UserSession is one currently-or-recently-online session row.
type UserSession struct {
	UserID      string    `json:"user_id"`
	CountryCode string    `json:"country_code,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

// CountryAggregate is the derived per-country heat/presence entry. Rollup
// and presence populations never mix within one aggregate instance.
type CountryAggregate struct {
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Flag            string  `json:"flag"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	OnlineCount     int     `json:"online_count"`
	CheckinCount    int     `json:"checkin_count"`
	LevelUpCount    int     `json:"levelup_count"`
	ActiveUserCount int     `json:"active_user_count"`
	Score           int     `json:"score"`
}

// CountrySnapshot is an immutable point-in-time copy of the aggregate map
// plus the current most-active country (nil when the map is empty).
type CountrySnapshot struct {
	Countries   map[string]CountryAggregate `json:"countries"`
	MostActive  *CountryAggregate           `json:"most_active,omitempty"`
	RefreshedAt time.Time                   `json:"refreshed_at"`
}
