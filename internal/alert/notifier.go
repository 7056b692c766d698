// Package alert delivers limit-exceeded events to the desktop and to
// subscribed consumers such as the SSE event stream.
package alert

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"appwatch/internal/track"
)

const subscriberBuffer = 8

// Notifier shows a system notification for each alert and fans the event out
// to subscribers. It implements track.AlertSink.
type Notifier struct {
	appName string
	logger  zerolog.Logger

	mu   sync.Mutex
	subs map[chan track.AlertEvent]struct{}
}

// NewNotifier creates a desktop alert notifier. appName is used as the
// notification title prefix.
func NewNotifier(appName string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		appName: appName,
		logger:  logger.With().Str("component", "alert-notifier").Logger(),
		subs:    make(map[chan track.AlertEvent]struct{}),
	}
}

// LimitExceeded shows the system notification and broadcasts the event. A
// failed desktop notification is logged and does not block the broadcast.
func (n *Notifier) LimitExceeded(event track.AlertEvent) {
	title := fmt.Sprintf("%s: time limit reached", n.appName)
	body := fmt.Sprintf("%s has been used for %d minutes today (limit %d minutes).",
		event.DisplayName, event.UsedMinutes, event.LimitMinutes)

	if err := beeep.Notify(title, body, ""); err != nil {
		n.logger.Error().Err(err).Str("app_id", event.AppID).Msg("Failed to show desktop notification")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		select {
		case sub <- event:
		default:
			// Slow subscriber: drop rather than stall the evaluator.
		}
	}
}

// Subscribe registers a consumer of alert events. The returned cancel function
// must be called to release the subscription.
func (n *Notifier) Subscribe() (<-chan track.AlertEvent, func()) {
	ch := make(chan track.AlertEvent, subscriberBuffer)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		delete(n.subs, ch)
		n.mu.Unlock()
	}
	return ch, cancel
}
