package poll

import (
	"sync"
	"time"
)

type (
	// Clock provides the current time, for timer deadlines.
	Clock interface {
		Now() time.Time
	}

	// ClockFunc implements Clock.
	ClockFunc func() time.Time

	// ManualClock is a Clock that only moves when told to, for deterministic
	// dispatch. It is safe for concurrent use.
	ManualClock struct {
		mu  sync.Mutex
		now time.Time
	}
)

var (
	// SystemClock is the default Clock, backed by time.Now.
	SystemClock Clock = ClockFunc(time.Now)
)

// Now implements Clock.
func (x ClockFunc) Now() time.Time { return x() }

// NewManualClock returns a ManualClock, starting at now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

// Now implements Clock.
func (x *ManualClock) Now() time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.now
}

// Advance moves the clock forward by d, returning the new time.
func (x *ManualClock) Advance(d time.Duration) time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.now = x.now.Add(d)
	return x.now
}

// Set moves the clock to t.
func (x *ManualClock) Set(t time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.now = t
}
