package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store is the root storage interface. Each sub-store owns one persisted
// concern; all writes replace that concern's snapshot as a whole, matching
// the debounced write model of the accumulators.
type Store interface {
	Close() error
	Usage() UsageStore
	Notifications() NotificationStore
	Settings() SettingsStore
	Alerts() AlertStore
}

// UsageStore persists the usage ledger keyed "date:appId" -> seconds.
type UsageStore interface {
	Save(ctx context.Context, totals map[string]float64) error
	Load(ctx context.Context) (map[string]float64, error)
}

// NotificationStore persists notification counts and the dedup set.
type NotificationStore interface {
	Save(ctx context.Context, state NotificationState) error
	Load(ctx context.Context) (*NotificationState, error)
}

// SettingsStore persists user settings, written immediately on mutation.
type SettingsStore interface {
	Save(ctx context.Context, settings Settings) error
	Load(ctx context.Context) (*Settings, error)
}

// AlertStore persists alert-once-per-day markers.
type AlertStore interface {
	Save(ctx context.Context, records []AlertRecord) error
	Load(ctx context.Context) ([]AlertRecord, error)
}
