// Package probe defines the external observation points the tracker depends
// on. Probes are best-effort: every call carries a hard timeout and a failure
// degrades to "no observation", never to a crash of the sampling loop.
package probe

import (
	"context"
	"errors"
)

// ErrNoData indicates the probe ran but the underlying source had nothing to
// report (for example the notification store is empty or unavailable). It is
// distinct from a probe failure.
var ErrNoData = errors.New("probe: no data available")

// ForegroundSample describes the OS foreground window at one instant.
type ForegroundSample struct {
	Process string `json:"process"`
	Title   string `json:"title"`
}

// ProcessInfo describes a group of running processes sharing a name.
type ProcessInfo struct {
	Process   string `json:"process"`
	Count     int    `json:"count"`
	HasWindow bool   `json:"hasWindow"`
}

// NotificationEvent is one system notification observed by the probe. ID must
// be globally stable and unique per underlying event so deduplication works
// across process restarts. Time is ISO 8601 and may be empty.
type NotificationEvent struct {
	ID       string `json:"id"`
	RawAppID string `json:"rawAppId"`
	Time     string `json:"time"`
}

// ForegroundProbe reports the current foreground window. A nil sample with a
// nil error means no window is focused.
type ForegroundProbe interface {
	Sample(ctx context.Context) (*ForegroundSample, error)
}

// CensusProbe reports the running process population.
type CensusProbe interface {
	Processes(ctx context.Context) ([]ProcessInfo, error)
}

// NotificationProbe reports notification events observed since the source's
// bounded lookback began. May return ErrNoData.
type NotificationProbe interface {
	Events(ctx context.Context) ([]NotificationEvent, error)
}

// MaxCensusResults caps the number of process groups a census probe returns.
const MaxCensusResults = 80

// UnavailableNotificationProbe stands in when no notification source is
// configured. It always reports ErrNoData, which surfaces as the "no-logs"
// summary status.
type UnavailableNotificationProbe struct{}

// Events implements NotificationProbe.
func (UnavailableNotificationProbe) Events(ctx context.Context) ([]NotificationEvent, error) {
	return nil, ErrNoData
}
