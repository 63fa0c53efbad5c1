package model

import "encoding/json"

// ChangeOp is the row-level operation reported by the upstream change feed.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ChangeNotification is one append-only change-feed record. Delivery is
// at-least-once and unordered across tables; NewRow is the affected row
// encoded as JSON (absent for deletes).
type ChangeNotification struct {
	Table  string          `json:"table"`
	Op     ChangeOp        `json:"op"`
	NewRow json.RawMessage `json:"new_row,omitempty"`
}

// Tables the engine subscribes to.
const (
	TableLiveActivity    = "live_activity"
	TableUserSessions    = "user_sessions"
	TableCountryActivity = "country_activity"
)

const (
	ChangeStreamName     = "CHANGES"
	ChangeStreamSubjects = "changes.>"
	ChangeConsumerName   = "live-engine"
	ChangeStreamMaxBytes = 1024 * 1024 * 64 // 64MB
)

// ChangeSubject returns the JetStream subject carrying notifications for a table.
func ChangeSubject(table string) string { return "changes." + table }
