package track

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"appwatch/internal/appcat"
	"appwatch/internal/metrics"
	"appwatch/internal/storage"
)

const (
	// DefaultLimitCheckInterval is the cadence of time-limit evaluation.
	DefaultLimitCheckInterval = 30 * time.Second

	// DefaultLimitStartupDelay schedules one check shortly after startup so
	// a limit already exceeded when the process starts alerts promptly.
	DefaultLimitStartupDelay = 5 * time.Second
)

// AlertEvent describes a time limit that was just exceeded.
type AlertEvent struct {
	AppID        string    `json:"appId"`
	DisplayName  string    `json:"displayName"`
	LimitMinutes int       `json:"limitMinutes"`
	UsedMinutes  int       `json:"usedMinutes"`
	Date         string    `json:"date"`
	NotifiedAt   time.Time `json:"notifiedAt"`
}

// AlertSink receives limit-exceeded events. Implementations must not block
// for long; the evaluator calls them from its check loop.
type AlertSink interface {
	LimitExceeded(event AlertEvent)
}

// LimitsConfig holds limit evaluator configuration.
type LimitsConfig struct {
	CheckInterval time.Duration
	StartupDelay  time.Duration
}

// LimitEvaluator periodically compares today's accumulated usage against the
// configured per-app limits and alerts at most once per (app, day). Alert
// records persist across restarts so a restart does not re-alert.
type LimitEvaluator struct {
	cfg      LimitsConfig
	tracker  *Tracker
	settings *SettingsManager
	resolver *appcat.Resolver
	store    storage.AlertStore
	sink     AlertSink
	clock    Clock
	logger   zerolog.Logger
	stopChan chan struct{}

	mu      sync.Mutex
	alerted map[string]storage.AlertRecord // appID -> today's record
}

// NewLimitEvaluator creates a limit evaluator. Persisted records from past
// dates are dropped on load; only today's records suppress alerts.
func NewLimitEvaluator(cfg LimitsConfig, tracker *Tracker, settings *SettingsManager, resolver *appcat.Resolver, store storage.AlertStore, sink AlertSink, clock Clock, logger zerolog.Logger) *LimitEvaluator {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = DefaultLimitCheckInterval
	}
	if cfg.StartupDelay == 0 {
		cfg.StartupDelay = DefaultLimitStartupDelay
	}

	e := &LimitEvaluator{
		cfg:      cfg,
		tracker:  tracker,
		settings: settings,
		resolver: resolver,
		store:    store,
		sink:     sink,
		clock:    clock,
		logger:   logger.With().Str("component", "limit-evaluator").Logger(),
		stopChan: make(chan struct{}),
		alerted:  make(map[string]storage.AlertRecord),
	}

	e.loadRecords()
	return e
}

func (e *LimitEvaluator) loadRecords() {
	records, err := e.store.Load(context.Background())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Error().Err(err).Msg("Failed to load alert records, starting empty")
		}
		return
	}

	today := localDate(e.clock.Now())
	for _, rec := range records {
		if rec.Date == today {
			e.alerted[rec.AppID] = rec
		}
	}
	e.logger.Info().Int("records", len(e.alerted)).Msg("Alert records loaded")
}

// Start begins the evaluation loop.
func (e *LimitEvaluator) Start() {
	go e.run()
	e.logger.Info().
		Dur("check_interval", e.cfg.CheckInterval).
		Msg("Limit evaluator started")
}

// Stop halts the evaluation loop.
func (e *LimitEvaluator) Stop() {
	close(e.stopChan)
	e.logger.Info().Msg("Limit evaluator stopped")
}

func (e *LimitEvaluator) run() {
	startup := time.NewTimer(e.cfg.StartupDelay)
	defer startup.Stop()
	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-startup.C:
			e.CheckNow()
		case <-ticker.C:
			e.CheckNow()
		case <-e.stopChan:
			return
		}
	}
}

// CheckNow runs one evaluation pass. It is a no-op when limit notifications
// are disabled or no limits are configured.
func (e *LimitEvaluator) CheckNow() {
	settings := e.settings.Get()
	if !settings.TimeLimitNotificationsEnabled || len(settings.TimeLimits) == 0 {
		return
	}

	used := e.tracker.TodaySeconds()
	now := e.clock.Now()
	today := localDate(now)

	var events []AlertEvent

	e.mu.Lock()
	for appID, rec := range e.alerted {
		if rec.Date != today {
			delete(e.alerted, appID)
		}
	}
	for _, limit := range settings.TimeLimits {
		if !limit.Enabled || limit.LimitMinutes <= 0 {
			continue
		}
		usedMinutes := int(used[limit.AppID] / 60)
		if usedMinutes < limit.LimitMinutes {
			continue
		}
		if _, done := e.alerted[limit.AppID]; done {
			continue
		}

		e.alerted[limit.AppID] = storage.AlertRecord{
			AppID:      limit.AppID,
			Date:       today,
			NotifiedAt: now,
		}

		displayName := limit.AppID
		if app, ok := e.resolver.App(limit.AppID); ok {
			displayName = app.DisplayName
		}
		events = append(events, AlertEvent{
			AppID:        limit.AppID,
			DisplayName:  displayName,
			LimitMinutes: limit.LimitMinutes,
			UsedMinutes:  usedMinutes,
			Date:         today,
			NotifiedAt:   now,
		})
	}
	records := e.recordsLocked()
	e.mu.Unlock()

	if len(events) == 0 {
		return
	}

	if err := e.store.Save(context.Background(), records); err != nil {
		metrics.PersistenceFailures.Inc()
		e.logger.Error().Err(err).Msg("Failed to persist alert records")
	}

	for _, event := range events {
		metrics.LimitAlerts.WithLabelValues(event.AppID).Inc()
		e.logger.Info().
			Str("app_id", event.AppID).
			Int("limit_minutes", event.LimitMinutes).
			Int("used_minutes", event.UsedMinutes).
			Msg("Time limit exceeded")
		if e.sink != nil {
			e.sink.LimitExceeded(event)
		}
	}
}

// Records returns today's alert records sorted by app id.
func (e *LimitEvaluator) Records() []storage.AlertRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordsLocked()
}

// recordsLocked must be called with the lock held.
func (e *LimitEvaluator) recordsLocked() []storage.AlertRecord {
	records := make([]storage.AlertRecord, 0, len(e.alerted))
	for _, rec := range e.alerted {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AppID < records[j].AppID })
	return records
}
