package track

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"appwatch/internal/metrics"
	"appwatch/internal/storage"
)

// ErrInvalidLimit is returned when a time-limit mutation fails validation.
// The persisted state is left untouched and callers receive the unchanged
// list.
var ErrInvalidLimit = errors.New("track: invalid time limit")

// SettingsManager owns the user-mutable settings. Every mutation is persisted
// immediately; persistence failures are logged and the in-memory state keeps
// operating.
type SettingsManager struct {
	store  storage.SettingsStore
	logger zerolog.Logger

	mu       sync.Mutex
	settings storage.Settings
}

// NewSettingsManager loads persisted settings or starts from defaults.
func NewSettingsManager(store storage.SettingsStore, logger zerolog.Logger) *SettingsManager {
	m := &SettingsManager{
		store:    store,
		logger:   logger.With().Str("component", "settings").Logger(),
		settings: storage.DefaultSettings(),
	}

	loaded, err := store.Load(context.Background())
	switch {
	case err == nil:
		if loaded.TimeLimits == nil {
			loaded.TimeLimits = []storage.TimeLimit{}
		}
		m.settings = *loaded
	case !errors.Is(err, storage.ErrNotFound):
		m.logger.Error().Err(err).Msg("Failed to load settings, using defaults")
	}
	return m
}

// Get returns a copy of the current settings.
func (m *SettingsManager) Get() storage.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked()
}

// Update applies a mutation to the non-limit settings fields and persists the
// result. Time limits are managed through the dedicated methods so their
// validation cannot be bypassed.
func (m *SettingsManager) Update(mutate func(*storage.Settings)) storage.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()

	limits := m.settings.TimeLimits
	mutate(&m.settings)
	m.settings.TimeLimits = limits

	m.persistLocked()
	return m.copyLocked()
}

// Limits returns a copy of the configured time limits.
func (m *SettingsManager) Limits() []storage.TimeLimit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.TimeLimit(nil), m.settings.TimeLimits...)
}

// SetLimits replaces the limit list. Duplicate app ids collapse to the last
// entry (upsert semantics). On validation failure nothing changes and the
// unchanged list is returned alongside the error.
func (m *SettingsManager) SetLimits(limits []storage.TimeLimit) ([]storage.TimeLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deduped := make([]storage.TimeLimit, 0, len(limits))
	index := make(map[string]int)
	for _, limit := range limits {
		if err := validateLimit(limit); err != nil {
			return append([]storage.TimeLimit(nil), m.settings.TimeLimits...), err
		}
		if at, ok := index[limit.AppID]; ok {
			deduped[at] = limit
			continue
		}
		index[limit.AppID] = len(deduped)
		deduped = append(deduped, limit)
	}

	m.settings.TimeLimits = deduped
	m.persistLocked()
	return append([]storage.TimeLimit(nil), deduped...), nil
}

// AddLimit upserts a single limit: an existing limit for the same app id is
// replaced.
func (m *SettingsManager) AddLimit(limit storage.TimeLimit) ([]storage.TimeLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateLimit(limit); err != nil {
		return append([]storage.TimeLimit(nil), m.settings.TimeLimits...), err
	}

	replaced := false
	for i, existing := range m.settings.TimeLimits {
		if existing.AppID == limit.AppID {
			m.settings.TimeLimits[i] = limit
			replaced = true
			break
		}
	}
	if !replaced {
		m.settings.TimeLimits = append(m.settings.TimeLimits, limit)
	}

	m.persistLocked()
	return append([]storage.TimeLimit(nil), m.settings.TimeLimits...), nil
}

// RemoveLimit deletes the limit for an app id, if present.
func (m *SettingsManager) RemoveLimit(appID string) []storage.TimeLimit {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.settings.TimeLimits[:0]
	for _, limit := range m.settings.TimeLimits {
		if limit.AppID != appID {
			kept = append(kept, limit)
		}
	}
	m.settings.TimeLimits = kept

	m.persistLocked()
	return append([]storage.TimeLimit(nil), kept...)
}

func validateLimit(limit storage.TimeLimit) error {
	if limit.AppID == "" {
		return fmt.Errorf("%w: empty app id", ErrInvalidLimit)
	}
	if limit.LimitMinutes <= 0 {
		return fmt.Errorf("%w: limit minutes must be positive, got %d", ErrInvalidLimit, limit.LimitMinutes)
	}
	return nil
}

func (m *SettingsManager) copyLocked() storage.Settings {
	copied := m.settings
	copied.TimeLimits = append([]storage.TimeLimit(nil), m.settings.TimeLimits...)
	return copied
}

func (m *SettingsManager) persistLocked() {
	if err := m.store.Save(context.Background(), m.settings); err != nil {
		metrics.PersistenceFailures.Inc()
		m.logger.Error().Err(err).Msg("Failed to persist settings")
	}
}
