package appsettings

import (
	"time"
)

// Settings is the user-settings snapshot: device preference toggles plus a
// periodic usage counter. Preference booleans are device-specific and are only
// adopted from remote on a fresh install; the usage counter merges by period.
type Settings struct {
	NotificationsEnabled bool      `json:"notifications_enabled" db:"notifications_enabled"`
	HapticsEnabled       bool      `json:"haptics_enabled" db:"haptics_enabled"`
	UsagePeriodStart     string    `json:"usage_period_start" db:"usage_period_start"`
	UsageCount           int       `json:"usage_count" db:"usage_count"`
	Initialized          bool      `json:"initialized" db:"initialized"`
	ModifiedAt           time.Time `json:"modified_at" db:"modified_at"`
}
