package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"appwatch/internal/storage"
)

type usageStore struct {
	db *bbolt.DB
}

// Save replaces the whole ledger. Keys absent from totals are removed, so a
// clear-data write leaves nothing behind.
func (s *usageStore) Save(ctx context.Context, totals map[string]float64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := tx.DeleteBucket([]byte(bucketUsage)); err != nil {
			return fmt.Errorf("reset usage bucket: %w", err)
		}
		b, err := tx.CreateBucket([]byte(bucketUsage))
		if err != nil {
			return fmt.Errorf("recreate usage bucket: %w", err)
		}
		for key, seconds := range totals {
			data, err := marshal(seconds)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *usageStore) Load(ctx context.Context) (map[string]float64, error) {
	totals := make(map[string]float64)
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUsage))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var seconds float64
			if err := unmarshal(v, &seconds); err != nil {
				return err
			}
			totals[string(k)] = seconds
			found = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, storage.ErrNotFound
	}
	return totals, nil
}

type notificationStore struct {
	db *bbolt.DB
}

func (s *notificationStore) Save(ctx context.Context, state storage.NotificationState) error {
	return putSnapshot(ctx, s.db, bucketNotifications, state)
}

func (s *notificationStore) Load(ctx context.Context) (*storage.NotificationState, error) {
	state, err := getSnapshot[storage.NotificationState](ctx, s.db, bucketNotifications)
	if err != nil {
		return nil, err
	}
	if state.Counts == nil {
		state.Counts = make(map[string]map[string]int)
	}
	return state, nil
}

type settingsStore struct {
	db *bbolt.DB
}

func (s *settingsStore) Save(ctx context.Context, settings storage.Settings) error {
	return putSnapshot(ctx, s.db, bucketSettings, settings)
}

func (s *settingsStore) Load(ctx context.Context) (*storage.Settings, error) {
	return getSnapshot[storage.Settings](ctx, s.db, bucketSettings)
}

type alertStore struct {
	db *bbolt.DB
}

func (s *alertStore) Save(ctx context.Context, records []storage.AlertRecord) error {
	if records == nil {
		records = []storage.AlertRecord{}
	}
	return putSnapshot(ctx, s.db, bucketAlerts, records)
}

func (s *alertStore) Load(ctx context.Context) ([]storage.AlertRecord, error) {
	records, err := getSnapshot[[]storage.AlertRecord](ctx, s.db, bucketAlerts)
	if err != nil {
		return nil, err
	}
	return *records, nil
}
