package track

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"appwatch/internal/probe"
	"appwatch/internal/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testClock() *TestClock {
	return &TestClock{CurrentTime: time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)}
}

// fakeForeground returns a fixed sequence of samples, then repeats the last.
type fakeForeground struct {
	mu      sync.Mutex
	samples []foregroundResult
	at      int
}

type foregroundResult struct {
	sample *probe.ForegroundSample
	err    error
}

func (f *fakeForeground) push(process, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, foregroundResult{sample: &probe.ForegroundSample{Process: process, Title: title}})
}

func (f *fakeForeground) pushNone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, foregroundResult{})
}

func (f *fakeForeground) pushErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, foregroundResult{err: err})
}

func (f *fakeForeground) Sample(ctx context.Context) (*probe.ForegroundSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.samples) == 0 {
		return nil, nil
	}
	res := f.samples[f.at]
	if f.at < len(f.samples)-1 {
		f.at++
	}
	return res.sample, res.err
}

type fakeCensus struct {
	infos []probe.ProcessInfo
	err   error
}

func (f *fakeCensus) Processes(ctx context.Context) ([]probe.ProcessInfo, error) {
	return f.infos, f.err
}

// fakeNotificationProbe returns one canned result per call, then repeats the
// last.
type fakeNotificationProbe struct {
	mu      sync.Mutex
	results []notificationResult
	at      int
}

type notificationResult struct {
	events []probe.NotificationEvent
	err    error
}

func (f *fakeNotificationProbe) push(events []probe.NotificationEvent, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, notificationResult{events: events, err: err})
}

func (f *fakeNotificationProbe) Events(ctx context.Context) ([]probe.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil, nil
	}
	res := f.results[f.at]
	if f.at < len(f.results)-1 {
		f.at++
	}
	return res.events, res.err
}

// memStore is an in-memory storage.Store for tests.
type memStore struct {
	mu            sync.Mutex
	usage         map[string]float64
	notifications *storage.NotificationState
	settings      *storage.Settings
	alerts        []storage.AlertRecord
	saveErr       error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) Close() error                           { return nil }
func (s *memStore) Usage() storage.UsageStore              { return (*memUsage)(s) }
func (s *memStore) Notifications() storage.NotificationStore { return (*memNotifications)(s) }
func (s *memStore) Settings() storage.SettingsStore        { return (*memSettings)(s) }
func (s *memStore) Alerts() storage.AlertStore             { return (*memAlerts)(s) }

type memUsage memStore

func (s *memUsage) Save(ctx context.Context, totals map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	copied := make(map[string]float64, len(totals))
	for k, v := range totals {
		copied[k] = v
	}
	s.usage = copied
	return nil
}

func (s *memUsage) Load(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usage == nil {
		return nil, storage.ErrNotFound
	}
	copied := make(map[string]float64, len(s.usage))
	for k, v := range s.usage {
		copied[k] = v
	}
	return copied, nil
}

type memNotifications memStore

func (s *memNotifications) Save(ctx context.Context, state storage.NotificationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.notifications = &state
	return nil
}

func (s *memNotifications) Load(ctx context.Context) (*storage.NotificationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifications == nil {
		return nil, storage.ErrNotFound
	}
	state := *s.notifications
	return &state, nil
}

type memSettings memStore

func (s *memSettings) Save(ctx context.Context, settings storage.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.settings = &settings
	return nil
}

func (s *memSettings) Load(ctx context.Context) (*storage.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return nil, storage.ErrNotFound
	}
	settings := *s.settings
	return &settings, nil
}

type memAlerts memStore

func (s *memAlerts) Save(ctx context.Context, records []storage.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.alerts = append([]storage.AlertRecord(nil), records...)
	return nil
}

func (s *memAlerts) Load(ctx context.Context) ([]storage.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alerts == nil {
		return nil, storage.ErrNotFound
	}
	return append([]storage.AlertRecord(nil), s.alerts...), nil
}
