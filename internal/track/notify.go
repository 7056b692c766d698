package track

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"appwatch/internal/appcat"
	"appwatch/internal/metrics"
	"appwatch/internal/probe"
	"appwatch/internal/storage"
)

const (
	// DefaultNotificationRetentionDays bounds how far back notification
	// counts are kept.
	DefaultNotificationRetentionDays = 7

	// DefaultNotificationFlushDebounce is the quiet period before the
	// notification state is written.
	DefaultNotificationFlushDebounce = 5 * time.Second

	// seenHighWater/seenLowWater bound the dedup set: once it exceeds the
	// high water mark only the most recently inserted low-water entries are
	// retained. Insertion-order trim, not LRU.
	seenHighWater = 2000
	seenLowWater  = 1000
)

// SummaryStatus reports the outcome of the most recent probe poll.
type SummaryStatus string

const (
	StatusOK     SummaryStatus = "ok"
	StatusNoLogs SummaryStatus = "no-logs"
	StatusError  SummaryStatus = "error"
)

// NotificationSummary is the read model for today's notification counts.
// Counts always reflect today regardless of Status: stale-but-available data
// is preferred over none.
type NotificationSummary struct {
	Total        int            `json:"total"`
	PerApp       map[string]int `json:"perApp"`
	LastUpdated  time.Time      `json:"lastUpdated"`
	Status       SummaryStatus  `json:"status"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// NotificationsConfig holds notification accumulator configuration.
type NotificationsConfig struct {
	RetentionDays int
	FlushDebounce time.Duration
}

// Notifications accumulates deduplicated notification counts per (day, app).
// Polling is demand-driven: each Summary call performs one poll/dedup/prune
// pass, so the consumer's fetch cadence is the accounting cadence.
type Notifications struct {
	cfg      NotificationsConfig
	probe    probe.NotificationProbe
	resolver *appcat.Resolver
	store    storage.NotificationStore
	clock    Clock
	flush    *FlushScheduler
	logger   zerolog.Logger

	mu        sync.Mutex
	counts    map[string]map[string]int // date -> appID -> count
	seen      map[string]struct{}
	seenOrder []string
	lastPoll  time.Time
	status    SummaryStatus
	errMsg    string
}

// NewNotifications creates a notification accumulator and loads persisted
// counts and the dedup set, so restarts do not double-count events.
func NewNotifications(cfg NotificationsConfig, p probe.NotificationProbe, resolver *appcat.Resolver, store storage.NotificationStore, clock Clock, logger zerolog.Logger) *Notifications {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultNotificationRetentionDays
	}
	if cfg.FlushDebounce == 0 {
		cfg.FlushDebounce = DefaultNotificationFlushDebounce
	}

	n := &Notifications{
		cfg:      cfg,
		probe:    p,
		resolver: resolver,
		store:    store,
		clock:    clock,
		logger:   logger.With().Str("component", "notification-tracker").Logger(),
		counts:   make(map[string]map[string]int),
		seen:     make(map[string]struct{}),
		status:   StatusNoLogs,
	}
	n.flush = NewFlushScheduler(cfg.FlushDebounce, n.persistState)

	n.loadState()
	return n
}

func (n *Notifications) loadState() {
	state, err := n.store.Load(context.Background())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			n.logger.Error().Err(err).Msg("Failed to load notification state, starting empty")
		}
		return
	}

	n.counts = state.Counts
	if n.counts == nil {
		n.counts = make(map[string]map[string]int)
	}
	n.lastPoll = state.LastPollTime
	for _, id := range state.SeenIDs {
		if _, ok := n.seen[id]; ok {
			continue
		}
		n.seen[id] = struct{}{}
		n.seenOrder = append(n.seenOrder, id)
	}

	n.logger.Info().
		Int("dates", len(n.counts)).
		Int("seen_ids", len(n.seenOrder)).
		Msg("Notification state loaded")
}

// Summary polls the notification probe, folds new events into the ledger,
// and returns today's counts. Probe failure degrades the status field only.
func (n *Notifications) Summary(ctx context.Context) NotificationSummary {
	events, err := n.probe.Events(ctx)
	now := n.clock.Now()

	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case err == nil:
		n.status, n.errMsg = StatusOK, ""
		n.lastPoll = now
	case errors.Is(err, probe.ErrNoData):
		n.status, n.errMsg = StatusNoLogs, ""
	default:
		n.status, n.errMsg = StatusError, err.Error()
		metrics.ProbeFailures.WithLabelValues("notification").Inc()
		n.logger.Debug().Err(err).Msg("Notification probe failed")
	}

	changed := n.ingest(events, now)
	if n.trimSeen() {
		changed = true
	}
	if n.prune(now) {
		changed = true
	}
	if changed {
		n.flush.ScheduleFlush()
	}

	return n.summaryLocked(now)
}

// ingest folds probe events into the ledger. Every event id is marked seen
// regardless of outcome; only events resolving to a known app and dated today
// are counted.
func (n *Notifications) ingest(events []probe.NotificationEvent, now time.Time) bool {
	today := localDate(now)
	changed := false

	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		if _, dup := n.seen[ev.ID]; dup {
			continue
		}
		n.seen[ev.ID] = struct{}{}
		n.seenOrder = append(n.seenOrder, ev.ID)
		changed = true

		appID := n.resolver.ResolveNotification(ev.RawAppID)
		if appID == appcat.OtherAppID {
			continue
		}

		date := today
		if ev.Time != "" {
			if ts, perr := time.Parse(time.RFC3339, ev.Time); perr == nil {
				date = localDate(ts)
			}
		}
		if date != today {
			continue
		}

		day := n.counts[date]
		if day == nil {
			day = make(map[string]int)
			n.counts[date] = day
		}
		day[appID]++
		metrics.NotificationEvents.WithLabelValues(appID).Inc()
	}

	return changed
}

func (n *Notifications) trimSeen() bool {
	if len(n.seenOrder) <= seenHighWater {
		return false
	}

	drop := len(n.seenOrder) - seenLowWater
	for _, id := range n.seenOrder[:drop] {
		delete(n.seen, id)
	}
	n.seenOrder = append([]string(nil), n.seenOrder[drop:]...)
	return true
}

func (n *Notifications) prune(now time.Time) bool {
	cutoff := localDate(now.AddDate(0, 0, -n.cfg.RetentionDays))
	changed := false
	for date := range n.counts {
		if date < cutoff {
			delete(n.counts, date)
			changed = true
		}
	}
	return changed
}

func (n *Notifications) summaryLocked(now time.Time) NotificationSummary {
	perApp := make(map[string]int)
	total := 0
	for appID, count := range n.counts[localDate(now)] {
		perApp[appID] = count
		total += count
	}

	return NotificationSummary{
		Total:        total,
		PerApp:       perApp,
		LastUpdated:  n.lastPoll,
		Status:       n.status,
		ErrorMessage: n.errMsg,
	}
}

// Stop performs a final synchronous write of the notification state.
func (n *Notifications) Stop() {
	n.flush.FlushNow()
	n.logger.Info().Msg("Notification tracker stopped")
}

func (n *Notifications) persistState() {
	n.mu.Lock()
	state := storage.NotificationState{
		Counts:       make(map[string]map[string]int, len(n.counts)),
		LastPollTime: n.lastPoll,
		SeenIDs:      append([]string(nil), n.seenOrder...),
	}
	for date, day := range n.counts {
		copied := make(map[string]int, len(day))
		for appID, count := range day {
			copied[appID] = count
		}
		state.Counts[date] = copied
	}
	n.mu.Unlock()

	if err := n.store.Save(context.Background(), state); err != nil {
		metrics.PersistenceFailures.Inc()
		n.logger.Error().Err(err).Msg("Failed to persist notification state")
	}
}
