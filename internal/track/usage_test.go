package track

import (
	"context"
	"errors"
	"testing"
	"time"

	"appwatch/internal/appcat"
	"appwatch/internal/probe"
	"appwatch/internal/storage"
)

func newTestTracker(t *testing.T, store *memStore, fg *fakeForeground, census *fakeCensus, clock *TestClock) *Tracker {
	t.Helper()
	resolver := appcat.NewResolver("appwatch.exe", "AppWatch")
	tracker := NewTracker(TrackerConfig{FlushDebounce: time.Hour}, resolver, fg, census, store.Usage(), clock, testLogger())
	t.Cleanup(func() { tracker.flush.Stop() })
	return tracker
}

func todaySecondsFor(t *testing.T, tracker *Tracker, appID string) float64 {
	t.Helper()
	return tracker.TodaySeconds()[appID]
}

func TestTrackerOneTickLag(t *testing.T) {
	clock := testClock()
	fg := &fakeForeground{}
	fg.push("chrome.exe", "New Tab")
	fg.push("chrome.exe", "New Tab")
	fg.push("chrome.exe", "New Tab")
	fg.push("powershell.exe", "Windows PowerShell")
	fg.push("powershell.exe", "Windows PowerShell")

	tracker := newTestTracker(t, newMemStore(), fg, &fakeCensus{}, clock)

	// Six ticks: the first observes chrome with nothing to credit, ticks
	// 2-4 credit chrome, ticks 5-6 credit powershell. Each observation pays
	// out on the following tick.
	for i := 0; i < 6; i++ {
		clock.Advance(time.Second)
		tracker.sampleTick(context.Background())
	}

	if got := todaySecondsFor(t, tracker, "chrome"); got != 3 {
		t.Errorf("chrome seconds = %v, want 3", got)
	}
	if got := todaySecondsFor(t, tracker, "powershell"); got != 2 {
		t.Errorf("powershell seconds = %v, want 2", got)
	}
}

func TestTrackerElapsedCap(t *testing.T) {
	clock := testClock()
	fg := &fakeForeground{}
	fg.push("chrome.exe", "")

	tracker := newTestTracker(t, newMemStore(), fg, &fakeCensus{}, clock)

	clock.Advance(time.Second)
	tracker.sampleTick(context.Background())

	// Simulate a sleep/resume gap: ten minutes pass between ticks but only
	// the cap is credited.
	clock.Advance(10 * time.Minute)
	tracker.sampleTick(context.Background())

	if got := todaySecondsFor(t, tracker, "chrome"); got != 60 {
		t.Errorf("chrome seconds after gap = %v, want 60 (capped)", got)
	}
}

func TestTrackerBackwardClockCreditsNothing(t *testing.T) {
	clock := testClock()
	fg := &fakeForeground{}
	fg.push("chrome.exe", "")

	tracker := newTestTracker(t, newMemStore(), fg, &fakeCensus{}, clock)

	clock.Advance(time.Second)
	tracker.sampleTick(context.Background())

	clock.Advance(-30 * time.Second)
	tracker.sampleTick(context.Background())

	if got := todaySecondsFor(t, tracker, "chrome"); got != 0 {
		t.Errorf("chrome seconds after backward clock = %v, want 0", got)
	}
}

func TestTrackerProbeFailureCreditsNoOne(t *testing.T) {
	clock := testClock()
	fg := &fakeForeground{}
	fg.push("chrome.exe", "")
	fg.pushErr(errors.New("probe timed out"))
	fg.push("chrome.exe", "")

	tracker := newTestTracker(t, newMemStore(), fg, &fakeCensus{}, clock)

	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		tracker.sampleTick(context.Background())
	}

	// Tick 1 observes chrome, tick 2 credits it but the probe fails, so
	// tick 3's interval has no creditee. Tick 3 re-observes chrome and
	// tick 4 credits it again: 2 of the 4 seconds are attributed.
	if got := todaySecondsFor(t, tracker, "chrome"); got != 2 {
		t.Errorf("chrome seconds across failed probe = %v, want 2", got)
	}
}

func TestTrackerNoFocusedWindow(t *testing.T) {
	clock := testClock()
	fg := &fakeForeground{}
	fg.push("chrome.exe", "")
	fg.pushNone()

	tracker := newTestTracker(t, newMemStore(), fg, &fakeCensus{}, clock)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		tracker.sampleTick(context.Background())
	}

	if got := todaySecondsFor(t, tracker, "chrome"); got != 1 {
		t.Errorf("chrome seconds = %v, want 1", got)
	}
	if snap := tracker.Snapshot(); snap.ActiveAppID != "" {
		t.Errorf("active app with no focused window = %q, want empty", snap.ActiveAppID)
	}
}

func TestTrackerSnapshotIdempotent(t *testing.T) {
	clock := testClock()
	fg := &fakeForeground{}
	fg.push("chrome.exe", "")

	tracker := newTestTracker(t, newMemStore(), fg, &fakeCensus{}, clock)

	clock.Advance(time.Second)
	tracker.sampleTick(context.Background())
	clock.Advance(time.Second)
	tracker.sampleTick(context.Background())

	first := tracker.Snapshot()
	second := tracker.Snapshot()

	if len(first.UsageEntries) != len(second.UsageEntries) {
		t.Fatalf("snapshot entry count changed between reads: %d vs %d", len(first.UsageEntries), len(second.UsageEntries))
	}
	for i := range first.UsageEntries {
		if first.UsageEntries[i] != second.UsageEntries[i] {
			t.Errorf("entry %d changed between reads: %+v vs %+v", i, first.UsageEntries[i], second.UsageEntries[i])
		}
	}
	if first.ActiveAppID != "chrome" || second.ActiveAppID != "chrome" {
		t.Errorf("active app = %q/%q, want chrome", first.ActiveAppID, second.ActiveAppID)
	}
}

func TestTrackerLedgerRoundTrip(t *testing.T) {
	store := newMemStore()
	clock := testClock()
	fg := &fakeForeground{}
	fg.push("chrome.exe", "")

	tracker := newTestTracker(t, store, fg, &fakeCensus{}, clock)
	clock.Advance(time.Second)
	tracker.sampleTick(context.Background())
	clock.Advance(time.Second)
	tracker.sampleTick(context.Background())
	tracker.persistLedger()

	reloaded := newTestTracker(t, store, &fakeForeground{}, &fakeCensus{}, clock)
	if got := todaySecondsFor(t, reloaded, "chrome"); got != 1 {
		t.Errorf("reloaded chrome seconds = %v, want 1", got)
	}
}

func TestTrackerClearData(t *testing.T) {
	store := newMemStore()
	clock := testClock()
	fg := &fakeForeground{}
	fg.push("chrome.exe", "")

	tracker := newTestTracker(t, store, fg, &fakeCensus{}, clock)
	clock.Advance(time.Second)
	tracker.sampleTick(context.Background())
	clock.Advance(time.Second)
	tracker.sampleTick(context.Background())
	tracker.persistLedger()

	if err := tracker.ClearData(context.Background()); err != nil {
		t.Fatalf("ClearData failed: %v", err)
	}

	if snap := tracker.Snapshot(); len(snap.UsageEntries) != 0 {
		t.Errorf("snapshot after clear has %d entries, want 0", len(snap.UsageEntries))
	}
	persisted, err := store.Usage().Load(context.Background())
	if err != nil {
		t.Fatalf("loading persisted ledger: %v", err)
	}
	if len(persisted) != 0 {
		t.Errorf("persisted ledger after clear has %d entries, want 0", len(persisted))
	}
}

func TestTrackerRetentionPrunesOldDates(t *testing.T) {
	store := newMemStore()
	clock := testClock()
	old := localDate(clock.Now().AddDate(0, 0, -40))
	today := localDate(clock.Now())
	if err := store.Usage().Save(context.Background(), map[string]float64{
		storage.LedgerKey(old, "chrome"):   100,
		storage.LedgerKey(today, "chrome"): 5,
	}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	resolver := appcat.NewResolver("appwatch.exe", "AppWatch")
	tracker := NewTracker(TrackerConfig{FlushDebounce: time.Hour, RetentionDays: 30}, resolver, &fakeForeground{}, &fakeCensus{}, store.Usage(), clock, testLogger())
	defer tracker.flush.Stop()

	tracker.persistLedger()

	persisted, err := store.Usage().Load(context.Background())
	if err != nil {
		t.Fatalf("loading persisted ledger: %v", err)
	}
	if _, ok := persisted[storage.LedgerKey(old, "chrome")]; ok {
		t.Error("40-day-old entry survived a 30-day retention flush")
	}
	if persisted[storage.LedgerKey(today, "chrome")] != 5 {
		t.Errorf("today's entry = %v, want 5", persisted[storage.LedgerKey(today, "chrome")])
	}
}

func TestTrackerCensusMergeAndSort(t *testing.T) {
	clock := testClock()
	census := &fakeCensus{infos: []probe.ProcessInfo{
		{Process: "powershell.exe", Count: 1, HasWindow: false},
		{Process: "pwsh.exe", Count: 2, HasWindow: true},
		{Process: "chrome.exe", Count: 5, HasWindow: false},
		{Process: "appwatch.exe", Count: 1, HasWindow: true},
	}}

	tracker := newTestTracker(t, newMemStore(), &fakeForeground{}, census, clock)
	tracker.censusTick(context.Background())

	snap := tracker.Snapshot()
	if len(snap.RunningApps) != 2 {
		t.Fatalf("running apps = %d, want 2 (self excluded, shells merged)", len(snap.RunningApps))
	}

	// powershell and pwsh merge into one logical app; a windowed app sorts
	// ahead of a higher-count windowless one.
	first := snap.RunningApps[0]
	if first.App.ID != "powershell" || first.Count != 3 || !first.HasWindow {
		t.Errorf("first running app = %+v, want merged powershell count=3 hasWindow=true", first)
	}
	if second := snap.RunningApps[1]; second.App.ID != "chrome" || second.Count != 5 {
		t.Errorf("second running app = %+v, want chrome count=5", second)
	}
}
