package poll

import (
	"container/heap"
	"time"
)

// Poll is the readiness registry shared by every source of a [Loop]. It
// monitors file descriptors via the platform poller, and tracks timer
// deadlines in a min-heap.
//
// Poll is not safe for concurrent use. It must only be used from the
// goroutine dispatching the loop, typically from within the Register,
// Reregister, Unregister and ProcessEvents methods of an [EventSource].
type Poll struct {
	clock      Clock
	// live holds the handles of timers that have not fired or been cancelled,
	// cancelled entries are skipped lazily, when they reach the top of the heap
	live       map[TimeoutHandle]struct{}
	timers     timerHeap
	events     []event
	nextHandle TimeoutHandle
	poller     fastPoller
	closed     bool
}

// NewPoll creates a standalone Poll. Most users should use [New], which
// creates a Poll internally.
func NewPoll(opts ...LoopOption) (*Poll, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	return newPoll(cfg)
}

func newPoll(cfg *loopOptions) (*Poll, error) {
	p := &Poll{
		clock:  cfg.clock,
		live:   make(map[TimeoutHandle]struct{}),
		events: make([]event, 0, 64),
	}
	if err := p.poller.init(); err != nil {
		return nil, err
	}
	return p, nil
}

// Now returns the current time, according to the configured [Clock].
func (p *Poll) Now() time.Time {
	return p.clock.Now()
}

// Register starts monitoring fd, reporting readiness using token.
func (p *Poll) Register(fd int, interest Interest, mode Mode, token Token) error {
	if p.closed {
		return ErrPollClosed
	}
	return p.poller.register(fd, interest, mode, token)
}

// Reregister updates the interest, mode and token of a registered fd.
func (p *Poll) Reregister(fd int, interest Interest, mode Mode, token Token) error {
	if p.closed {
		return ErrPollClosed
	}
	return p.poller.reregister(fd, interest, mode, token)
}

// Unregister stops monitoring fd. It must be called before closing fd.
func (p *Poll) Unregister(fd int) error {
	if p.closed {
		return ErrPollClosed
	}
	return p.poller.unregister(fd)
}

// InsertTimeout schedules an event, with an empty [Readiness], to be reported
// for token once deadline has passed. Each inserted timeout fires at most
// once.
func (p *Poll) InsertTimeout(deadline time.Time, token Token) TimeoutHandle {
	p.nextHandle++
	h := p.nextHandle
	p.live[h] = struct{}{}
	heap.Push(&p.timers, timerEntry{when: deadline, token: token, handle: h})
	return h
}

// CancelTimeout prevents a pending timeout from firing. Unknown or already
// fired handles are ignored.
func (p *Poll) CancelTimeout(h TimeoutHandle) {
	delete(p.live, h)
}

// nextDeadline returns the earliest pending deadline, discarding cancelled
// entries from the top of the heap.
func (p *Poll) nextDeadline() (time.Time, bool) {
	for len(p.timers) > 0 {
		if _, ok := p.live[p.timers[0].handle]; ok {
			return p.timers[0].when, true
		}
		heap.Pop(&p.timers)
	}
	return time.Time{}, false
}

// poll waits up to timeout (negative waits indefinitely) for readiness,
// returning fd events followed by expired timers, in deadline order. The
// returned slice is only valid until the next call.
func (p *Poll) poll(timeout time.Duration) ([]event, error) {
	if p.closed {
		return nil, ErrPollClosed
	}

	if when, ok := p.nextDeadline(); ok {
		d := max(when.Sub(p.clock.Now()), 0)
		if timeout < 0 || d < timeout {
			timeout = d
		}
	}

	events, err := p.poller.wait(timeoutMillis(timeout), p.events[:0])
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	for len(p.timers) > 0 && !p.timers[0].when.After(now) {
		entry := heap.Pop(&p.timers).(timerEntry)
		if _, ok := p.live[entry.handle]; !ok {
			continue
		}
		delete(p.live, entry.handle)
		events = append(events, event{token: entry.token})
	}

	p.events = events
	return events, nil
}

// Close releases the platform poller. It is idempotent.
func (p *Poll) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.timers = nil
	clear(p.live)
	return p.poller.close()
}

// timeoutMillis converts a timeout to the poller's resolution, rounding up
// so a deadline is never reported early.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<31-1 {
		ms = 1<<31 - 1
	}
	return int(ms)
}
