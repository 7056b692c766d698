package storage

import "time"

// NotificationState is the persisted snapshot of the notification
// accumulator: per-day/per-app counts, the last successful poll time, and the
// bounded set of already-processed event ids (insertion order preserved).
type NotificationState struct {
	Counts       map[string]map[string]int `json:"counts"`
	LastPollTime time.Time                 `json:"lastPollTime"`
	SeenIDs      []string                  `json:"seenNotificationIds"`
}

// TimeLimit caps daily usage for one app. At most one limit exists per app id.
type TimeLimit struct {
	AppID        string `json:"appId"`
	LimitMinutes int    `json:"limitMinutes"`
	Enabled      bool   `json:"enabled"`
}

// Settings are the user-mutable application settings.
type Settings struct {
	MinimizeToTray                bool        `json:"minimizeToTray"`
	StartWithWindows              bool        `json:"startWithWindows"`
	TimeLimits                    []TimeLimit `json:"timeLimits"`
	TimeLimitNotificationsEnabled bool        `json:"timeLimitNotificationsEnabled"`
}

// DefaultSettings returns the settings used before the user saves any.
func DefaultSettings() Settings {
	return Settings{
		MinimizeToTray:                true,
		StartWithWindows:              false,
		TimeLimits:                    []TimeLimit{},
		TimeLimitNotificationsEnabled: true,
	}
}

// AlertRecord marks that a time limit was already surfaced for an app on a
// given local date. At most one record exists per (appId, date); records for
// past dates are dropped at load time.
type AlertRecord struct {
	AppID      string    `json:"appId"`
	Date       string    `json:"date"`
	NotifiedAt time.Time `json:"notifiedAt"`
}

// LedgerKey builds the composite usage ledger key.
func LedgerKey(date, appID string) string {
	return date + ":" + appID
}
