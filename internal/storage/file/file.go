// Package file implements the default storage backend: one JSON file per
// concern under the data directory, written atomically so a crash mid-write
// never leaves a truncated snapshot behind.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"appwatch/internal/storage"
)

const (
	usageFile         = "usage.json"
	notificationsFile = "notifications.json"
	settingsFile      = "settings.json"
	alertsFile        = "alerts.json"
)

// Store implements storage.Store over JSON files in a directory.
type Store struct {
	dir string
}

// Open prepares a file-backed store rooted at dir, creating it if absent.
func Open(dir string) (*Store, error) {
	if err := storage.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close implements storage.Store. File handles are not held open.
func (s *Store) Close() error { return nil }

// Usage returns the usage ledger store.
func (s *Store) Usage() storage.UsageStore { return &usageStore{s} }

// Notifications returns the notification state store.
func (s *Store) Notifications() storage.NotificationStore { return &notificationStore{s} }

// Settings returns the settings store.
func (s *Store) Settings() storage.SettingsStore { return &settingsStore{s} }

// Alerts returns the alert record store.
func (s *Store) Alerts() storage.AlertStore { return &alertStore{s} }

func (s *Store) write(ctx context.Context, name string, value any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, name string, out any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

type usageStore struct{ s *Store }

type usageSnapshot struct {
	Totals map[string]float64 `json:"totals"`
}

func (u *usageStore) Save(ctx context.Context, totals map[string]float64) error {
	return u.s.write(ctx, usageFile, usageSnapshot{Totals: totals})
}

func (u *usageStore) Load(ctx context.Context) (map[string]float64, error) {
	var snap usageSnapshot
	if err := u.s.read(ctx, usageFile, &snap); err != nil {
		return nil, err
	}
	if snap.Totals == nil {
		snap.Totals = make(map[string]float64)
	}
	return snap.Totals, nil
}

type notificationStore struct{ s *Store }

func (n *notificationStore) Save(ctx context.Context, state storage.NotificationState) error {
	return n.s.write(ctx, notificationsFile, state)
}

func (n *notificationStore) Load(ctx context.Context) (*storage.NotificationState, error) {
	var state storage.NotificationState
	if err := n.s.read(ctx, notificationsFile, &state); err != nil {
		return nil, err
	}
	if state.Counts == nil {
		state.Counts = make(map[string]map[string]int)
	}
	return &state, nil
}

type settingsStore struct{ s *Store }

func (st *settingsStore) Save(ctx context.Context, settings storage.Settings) error {
	return st.s.write(ctx, settingsFile, settings)
}

func (st *settingsStore) Load(ctx context.Context) (*storage.Settings, error) {
	var settings storage.Settings
	if err := st.s.read(ctx, settingsFile, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

type alertStore struct{ s *Store }

func (a *alertStore) Save(ctx context.Context, records []storage.AlertRecord) error {
	if records == nil {
		records = []storage.AlertRecord{}
	}
	return a.s.write(ctx, alertsFile, records)
}

func (a *alertStore) Load(ctx context.Context) ([]storage.AlertRecord, error) {
	var records []storage.AlertRecord
	if err := a.s.read(ctx, alertsFile, &records); err != nil {
		return nil, err
	}
	return records, nil
}
