package domain

import "time"

// SettingHistory is one recorded settings change.
type SettingHistory struct {
	Key       string
	OldValue  string
	NewValue  string
	ChangedBy int64
	ChangedAt time.Time
}
