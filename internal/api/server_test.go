package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"appwatch/internal/storage"
	"appwatch/internal/track"
)

type fakeUsage struct {
	snapshot track.UsageSnapshot
	clearErr error
	cleared  bool
}

func (f *fakeUsage) Snapshot() track.UsageSnapshot { return f.snapshot }
func (f *fakeUsage) ClearData(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	return nil
}

type fakeNotifications struct {
	summary track.NotificationSummary
	polls   int
}

func (f *fakeNotifications) Summary(ctx context.Context) track.NotificationSummary {
	f.polls++
	return f.summary
}

type fakeSettings struct {
	settings storage.Settings
	setErr   error
}

func (f *fakeSettings) Get() storage.Settings { return f.settings }

func (f *fakeSettings) Update(mutate func(*storage.Settings)) storage.Settings {
	mutate(&f.settings)
	return f.settings
}

func (f *fakeSettings) Limits() []storage.TimeLimit { return f.settings.TimeLimits }

func (f *fakeSettings) SetLimits(limits []storage.TimeLimit) ([]storage.TimeLimit, error) {
	if f.setErr != nil {
		return f.settings.TimeLimits, f.setErr
	}
	f.settings.TimeLimits = limits
	return limits, nil
}

func (f *fakeSettings) AddLimit(limit storage.TimeLimit) ([]storage.TimeLimit, error) {
	if f.setErr != nil {
		return f.settings.TimeLimits, f.setErr
	}
	f.settings.TimeLimits = append(f.settings.TimeLimits, limit)
	return f.settings.TimeLimits, nil
}

func (f *fakeSettings) RemoveLimit(appID string) []storage.TimeLimit {
	kept := f.settings.TimeLimits[:0]
	for _, limit := range f.settings.TimeLimits {
		if limit.AppID != appID {
			kept = append(kept, limit)
		}
	}
	f.settings.TimeLimits = kept
	return kept
}

type fakeAlerts struct {
	records []storage.AlertRecord
}

func (f *fakeAlerts) Records() []storage.AlertRecord { return f.records }

type fakeStream struct{}

func (fakeStream) Subscribe() (<-chan track.AlertEvent, func()) {
	return make(chan track.AlertEvent), func() {}
}

type fixture struct {
	usage         *fakeUsage
	notifications *fakeNotifications
	settings      *fakeSettings
	alerts        *fakeAlerts
	server        *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		usage:         &fakeUsage{},
		notifications: &fakeNotifications{summary: track.NotificationSummary{Status: track.StatusOK}},
		settings:      &fakeSettings{settings: storage.DefaultSettings()},
		alerts:        &fakeAlerts{},
	}
	f.server = NewServer(Config{ListenAddr: "127.0.0.1:0"}, f.usage, f.notifications, f.settings, f.alerts, fakeStream{}, zerolog.Nop())
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleUsage(t *testing.T) {
	f := newFixture(t)
	f.usage.snapshot = track.UsageSnapshot{
		ActiveAppID: "chrome",
		UsageEntries: []track.UsageEntry{
			{Date: "2025-06-15", AppID: "chrome", Minutes: 5, Seconds: 330},
		},
	}

	rec := f.do(t, http.MethodGet, "/api/usage", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var snap track.UsageSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if snap.ActiveAppID != "chrome" || len(snap.UsageEntries) != 1 {
		t.Errorf("snapshot = %+v, want chrome active with 1 entry", snap)
	}
}

func TestHandleUsageClear(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/usage/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !f.usage.cleared {
		t.Error("clear was not invoked")
	}

	f.usage.clearErr = errors.New("disk full")
	rec = f.do(t, http.MethodPost, "/api/usage/clear", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status on failure = %d, want 500", rec.Code)
	}
}

func TestHandleNotificationsDrivesPoll(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/notifications", nil)
	f.do(t, http.MethodGet, "/api/notifications", nil)

	if f.notifications.polls != 2 {
		t.Errorf("polls = %d, want 2 (each fetch drives one poll)", f.notifications.polls)
	}
}

func TestHandleUpdateSettingsPartial(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/settings", map[string]bool{"startWithWindows": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var updated storage.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !updated.StartWithWindows {
		t.Error("StartWithWindows not applied")
	}
	if !updated.MinimizeToTray {
		t.Error("unmentioned field changed by partial update")
	}
}

func TestHandleUpdateSettingsBadBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleLimitsLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/limits", storage.TimeLimit{AppID: "chrome", LimitMinutes: 30, Enabled: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d, want 200", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/limits", nil)
	var limits []storage.TimeLimit
	if err := json.Unmarshal(rec.Body.Bytes(), &limits); err != nil {
		t.Fatalf("decoding limits: %v", err)
	}
	if len(limits) != 1 || limits[0].AppID != "chrome" {
		t.Fatalf("limits = %+v, want single chrome entry", limits)
	}

	rec = f.do(t, http.MethodDelete, "/api/limits/chrome", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &limits); err != nil {
		t.Fatalf("decoding limits: %v", err)
	}
	if len(limits) != 0 {
		t.Errorf("limits after delete = %+v, want empty", limits)
	}
}

func TestHandleLimitsValidationError(t *testing.T) {
	f := newFixture(t)
	f.settings.setErr = track.ErrInvalidLimit

	rec := f.do(t, http.MethodPost, "/api/limits", storage.TimeLimit{AppID: "chrome", LimitMinutes: -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleAlerts(t *testing.T) {
	f := newFixture(t)
	f.alerts.records = []storage.AlertRecord{{AppID: "chrome", Date: "2025-06-15"}}

	rec := f.do(t, http.MethodGet, "/api/alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var records []storage.AlertRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decoding records: %v", err)
	}
	if len(records) != 1 || records[0].AppID != "chrome" {
		t.Errorf("records = %+v, want single chrome record", records)
	}
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/usage", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
