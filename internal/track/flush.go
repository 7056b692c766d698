package track

import (
	"sync"
	"time"
)

// FlushScheduler coalesces bursts of dirty-state notifications into a single
// deferred write. ScheduleFlush arms a timer if none is pending; FlushNow
// cancels any pending timer and writes synchronously, and is called
// unconditionally during shutdown.
type FlushScheduler struct {
	delay time.Duration
	flush func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewFlushScheduler creates a scheduler that invokes flush after a quiet
// period of delay.
func NewFlushScheduler(delay time.Duration, flush func()) *FlushScheduler {
	return &FlushScheduler{delay: delay, flush: flush}
}

// ScheduleFlush requests a deferred flush. Repeated calls within the quiet
// window are coalesced into the one pending write.
func (f *FlushScheduler) ScheduleFlush() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped || f.timer != nil {
		return
	}
	f.timer = time.AfterFunc(f.delay, func() {
		f.mu.Lock()
		f.timer = nil
		stopped := f.stopped
		f.mu.Unlock()
		if !stopped {
			f.flush()
		}
	})
}

// FlushNow cancels any pending deferred write and flushes synchronously.
func (f *FlushScheduler) FlushNow() {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()

	f.flush()
}

// Stop cancels any pending write without flushing. Used by tests; shutdown
// paths call FlushNow instead.
func (f *FlushScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}
