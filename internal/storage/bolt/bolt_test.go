package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"appwatch/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "appwatch.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestUsageSaveReplacesLedger(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	first := map[string]float64{
		storage.LedgerKey("2025-06-01", "chrome"): 120,
		storage.LedgerKey("2025-06-01", "steam"):  45,
	}
	if err := store.Usage().Save(context.Background(), first); err != nil {
		t.Fatalf("save usage: %v", err)
	}

	// A clear-data write persists an empty ledger; old keys must not survive.
	if err := store.Usage().Save(context.Background(), map[string]float64{}); err != nil {
		t.Fatalf("save empty usage: %v", err)
	}

	if _, err := store.Usage().Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("load after clear = %v, want ErrNotFound", err)
	}
}

func TestUsageRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	totals := map[string]float64{storage.LedgerKey("2025-06-02", "vscode"): 3601.25}
	if err := store.Usage().Save(context.Background(), totals); err != nil {
		t.Fatalf("save usage: %v", err)
	}

	loaded, err := store.Usage().Load(context.Background())
	if err != nil {
		t.Fatalf("load usage: %v", err)
	}
	if loaded["2025-06-02:vscode"] != 3601.25 {
		t.Errorf("vscode seconds = %v, want 3601.25", loaded["2025-06-02:vscode"])
	}
}

func TestSettingsAndAlertsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	settings := storage.DefaultSettings()
	settings.TimeLimits = []storage.TimeLimit{{AppID: "roblox", LimitMinutes: 60, Enabled: true}}
	if err := store.Settings().Save(context.Background(), settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	loaded, err := store.Settings().Load(context.Background())
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if len(loaded.TimeLimits) != 1 || loaded.TimeLimits[0].LimitMinutes != 60 {
		t.Fatalf("limits = %+v, want roblox 60m", loaded.TimeLimits)
	}

	records := []storage.AlertRecord{{AppID: "roblox", Date: "2025-06-02"}}
	if err := store.Alerts().Save(context.Background(), records); err != nil {
		t.Fatalf("save alerts: %v", err)
	}
	alerts, err := store.Alerts().Load(context.Background())
	if err != nil {
		t.Fatalf("load alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].AppID != "roblox" {
		t.Fatalf("alerts = %+v, want one roblox record", alerts)
	}
}
