package track

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"appwatch/internal/appcat"
	"appwatch/internal/metrics"
	"appwatch/internal/probe"
	"appwatch/internal/storage"
)

const (
	// DefaultSampleInterval is the foreground sampling period.
	DefaultSampleInterval = 1 * time.Second

	// DefaultRunningRefreshInterval is the running-apps census period.
	DefaultRunningRefreshInterval = 5 * time.Second

	// DefaultElapsedCap bounds the time credited for one interval, so a
	// sleep/suspend gap is not attributed to the previously focused app.
	DefaultElapsedCap = 60 * time.Second

	// DefaultFlushDebounce is the quiet period before a ledger write.
	DefaultFlushDebounce = 5 * time.Second
)

// TrackerConfig holds usage accumulator configuration.
type TrackerConfig struct {
	SampleInterval         time.Duration
	RunningRefreshInterval time.Duration
	ElapsedCap             time.Duration
	FlushDebounce          time.Duration

	// RetentionDays prunes ledger dates older than this many days at write
	// time. Zero keeps the full history, matching the source behavior.
	RetentionDays int
}

// RunningApp is one entry of the running-apps snapshot.
type RunningApp struct {
	App       appcat.LogicalApp `json:"app"`
	Count     int               `json:"count"`
	HasWindow bool              `json:"hasWindow"`
}

// UsageEntry is one (date, app) row of the usage snapshot.
type UsageEntry struct {
	Date              string `json:"date"`
	AppID             string `json:"appId"`
	Minutes           int    `json:"minutes"`
	Seconds           int    `json:"seconds"`
	NotificationCount int    `json:"notificationCount"`
}

// UsageSnapshot is the read model served to the dashboard.
type UsageSnapshot struct {
	Apps         []appcat.LogicalApp `json:"apps"`
	UsageEntries []UsageEntry        `json:"usageEntries"`
	ActiveAppID  string              `json:"activeAppId"`
	RunningApps  []RunningApp        `json:"runningApps"`
}

// Tracker is the usage accumulator: it samples the foreground window on a
// fixed cadence and converts the sample stream into accumulated seconds per
// (day, app). The ledger is mutated only from the tick handlers; probe calls
// happen outside the lock.
type Tracker struct {
	cfg        TrackerConfig
	resolver   *appcat.Resolver
	foreground probe.ForegroundProbe
	census     probe.CensusProbe
	store      storage.UsageStore
	clock      Clock
	flush      *FlushScheduler
	logger     zerolog.Logger
	stopChan   chan struct{}

	mu         sync.Mutex
	ledger     map[string]map[string]float64 // date -> appID -> seconds
	lastSample time.Time
	currentApp string
	hasCurrent bool
	running    []RunningApp
}

// NewTracker creates a usage accumulator and loads any persisted ledger.
func NewTracker(cfg TrackerConfig, resolver *appcat.Resolver, foreground probe.ForegroundProbe, census probe.CensusProbe, store storage.UsageStore, clock Clock, logger zerolog.Logger) *Tracker {
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}
	if cfg.RunningRefreshInterval == 0 {
		cfg.RunningRefreshInterval = DefaultRunningRefreshInterval
	}
	if cfg.ElapsedCap == 0 {
		cfg.ElapsedCap = DefaultElapsedCap
	}
	if cfg.FlushDebounce == 0 {
		cfg.FlushDebounce = DefaultFlushDebounce
	}

	t := &Tracker{
		cfg:        cfg,
		resolver:   resolver,
		foreground: foreground,
		census:     census,
		store:      store,
		clock:      clock,
		logger:     logger.With().Str("component", "usage-tracker").Logger(),
		stopChan:   make(chan struct{}),
		ledger:     make(map[string]map[string]float64),
		lastSample: clock.Now(),
	}
	t.flush = NewFlushScheduler(cfg.FlushDebounce, t.persistLedger)

	t.loadLedger()
	return t
}

func (t *Tracker) loadLedger() {
	totals, err := t.store.Load(context.Background())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			t.logger.Error().Err(err).Msg("Failed to load usage ledger, starting empty")
		}
		return
	}

	for key, seconds := range totals {
		date, appID, ok := strings.Cut(key, ":")
		if !ok || seconds < 0 {
			continue
		}
		day := t.ledger[date]
		if day == nil {
			day = make(map[string]float64)
			t.ledger[date] = day
		}
		day[appID] = seconds
	}

	t.logger.Info().Int("entries", len(totals)).Msg("Usage ledger loaded")
}

// Start begins the sampling and census loops.
func (t *Tracker) Start() {
	go t.sampleLoop()
	go t.censusLoop()
	t.logger.Info().
		Dur("sample_interval", t.cfg.SampleInterval).
		Dur("running_refresh_interval", t.cfg.RunningRefreshInterval).
		Msg("Usage tracker started")
}

// Stop halts the loops and performs one final synchronous flush.
func (t *Tracker) Stop() {
	close(t.stopChan)
	t.flush.FlushNow()
	t.logger.Info().Msg("Usage tracker stopped")
}

func (t *Tracker) sampleLoop() {
	ticker := time.NewTicker(t.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sampleTick(context.Background())
		case <-t.stopChan:
			return
		}
	}
}

func (t *Tracker) censusLoop() {
	ticker := time.NewTicker(t.cfg.RunningRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.censusTick(context.Background())
		case <-t.stopChan:
			return
		}
	}
}

// sampleTick credits the previous tick's app for the elapsed interval, then
// resolves the current foreground window as the next tick's creditee. The
// last-sample time advances unconditionally so a failed probe costs exactly
// one interval of attribution and nothing more.
func (t *Tracker) sampleTick(ctx context.Context) {
	now := t.clock.Now()

	t.mu.Lock()
	elapsed := now.Sub(t.lastSample)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > t.cfg.ElapsedCap {
		elapsed = t.cfg.ElapsedCap
	}
	if t.hasCurrent && elapsed > 0 {
		t.credit(localDate(now), t.currentApp, elapsed.Seconds())
	}
	t.lastSample = now
	t.mu.Unlock()

	// Suspension point: the probe may block up to its timeout.
	sample, err := t.foreground.Sample(ctx)

	var appID string
	var ok bool
	switch {
	case err != nil:
		metrics.SamplesTotal.WithLabelValues("error").Inc()
		metrics.ProbeFailures.WithLabelValues("foreground").Inc()
		t.logger.Debug().Err(err).Msg("Foreground probe failed")
	case sample == nil:
		metrics.SamplesTotal.WithLabelValues("none").Inc()
	default:
		appID, ok = t.resolver.Resolve(sample.Process, sample.Title)
		metrics.SamplesTotal.WithLabelValues("ok").Inc()
	}

	t.mu.Lock()
	t.currentApp, t.hasCurrent = appID, ok
	t.mu.Unlock()
}

// credit must be called with the lock held.
func (t *Tracker) credit(date, appID string, seconds float64) {
	day := t.ledger[date]
	if day == nil {
		day = make(map[string]float64)
		t.ledger[date] = day
	}
	day[appID] += seconds
	metrics.UsageSecondsCredited.WithLabelValues(appID).Add(seconds)
	t.flush.ScheduleFlush()
}

// censusTick refreshes the running-apps snapshot from the process census.
func (t *Tracker) censusTick(ctx context.Context) {
	infos, err := t.census.Processes(ctx)
	if err != nil {
		metrics.ProbeFailures.WithLabelValues("census").Inc()
		t.logger.Debug().Err(err).Msg("Census probe failed")
		return
	}

	merged := make(map[string]*RunningApp)
	order := make([]string, 0, len(infos))
	for _, info := range infos {
		appID, ok := t.resolver.Resolve(info.Process, "")
		if !ok {
			continue
		}
		entry := merged[appID]
		if entry == nil {
			app, found := t.resolver.App(appID)
			if !found {
				continue
			}
			entry = &RunningApp{App: app}
			merged[appID] = entry
			order = append(order, appID)
		}
		entry.Count += info.Count
		entry.HasWindow = entry.HasWindow || info.HasWindow
	}

	running := make([]RunningApp, 0, len(order))
	for _, appID := range order {
		running = append(running, *merged[appID])
	}
	sort.SliceStable(running, func(i, j int) bool {
		if running[i].HasWindow != running[j].HasWindow {
			return running[i].HasWindow
		}
		return running[i].Count > running[j].Count
	})
	if len(running) > probe.MaxCensusResults {
		running = running[:probe.MaxCensusResults]
	}

	t.mu.Lock()
	t.running = running
	t.mu.Unlock()
}

// Snapshot returns the current usage read model. It is read-only: calling it
// repeatedly without an intervening tick yields identical entries.
func (t *Tracker) Snapshot() UsageSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	used := make(map[string]bool)
	entries := make([]UsageEntry, 0)
	for date, day := range t.ledger {
		for appID, seconds := range day {
			used[appID] = true
			entries = append(entries, UsageEntry{
				Date:    date,
				AppID:   appID,
				Minutes: int(seconds / 60),
				Seconds: int(seconds),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].AppID < entries[j].AppID
	})

	activeAppID := ""
	if t.hasCurrent {
		activeAppID = t.currentApp
	}

	running := make([]RunningApp, len(t.running))
	copy(running, t.running)

	return UsageSnapshot{
		Apps:         t.resolver.Apps(func(id string) bool { return used[id] }),
		UsageEntries: entries,
		ActiveAppID:  activeAppID,
		RunningApps:  running,
	}
}

// TodaySeconds returns a copy of today's per-app accumulated seconds.
func (t *Tracker) TodaySeconds() map[string]float64 {
	today := localDate(t.clock.Now())

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]float64, len(t.ledger[today]))
	for appID, seconds := range t.ledger[today] {
		out[appID] = seconds
	}
	return out
}

// ClearData wipes the entire ledger and persists the empty state immediately.
func (t *Tracker) ClearData(ctx context.Context) error {
	t.mu.Lock()
	t.ledger = make(map[string]map[string]float64)
	t.mu.Unlock()

	t.logger.Info().Msg("Usage data cleared")
	if err := t.store.Save(ctx, map[string]float64{}); err != nil {
		metrics.PersistenceFailures.Inc()
		return fmt.Errorf("persist cleared ledger: %w", err)
	}
	return nil
}

// persistLedger flattens the ledger and writes it through the store. Write
// failures are swallowed; the in-memory state keeps operating and the next
// successful flush recovers going forward.
func (t *Tracker) persistLedger() {
	t.mu.Lock()
	if t.cfg.RetentionDays > 0 {
		cutoff := localDate(t.clock.Now().AddDate(0, 0, -t.cfg.RetentionDays))
		for date := range t.ledger {
			if date < cutoff {
				delete(t.ledger, date)
			}
		}
	}
	totals := make(map[string]float64)
	for date, day := range t.ledger {
		for appID, seconds := range day {
			totals[storage.LedgerKey(date, appID)] = seconds
		}
	}
	t.mu.Unlock()

	if err := t.store.Save(context.Background(), totals); err != nil {
		metrics.PersistenceFailures.Inc()
		t.logger.Error().Err(err).Msg("Failed to persist usage ledger")
	}
}
