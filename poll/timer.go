package poll

import (
	"time"
)

type (
	// Timer is an [EventSource] that fires once its deadline has passed.
	// The expiry handler decides, via [TimeoutAction], whether the timer is
	// rearmed or dropped.
	//
	// A relative duration is resolved against [Poll.Now] when the timer is
	// registered. Setting the duration or deadline of a registered timer
	// reschedules it immediately.
	Timer struct {
		deadline    time.Time
		poll        *Poll
		duration    time.Duration
		handle      TimeoutHandle
		token       Token
		hasDeadline bool
		hasDuration bool
	}

	// TimeoutAction is returned by a timer's expiry handler.
	TimeoutAction struct {
		deadline time.Time
		duration time.Duration
		kind     timeoutKind
	}

	timeoutKind uint8
)

const (
	timeoutDrop timeoutKind = iota
	timeoutDuration
	timeoutInstant
)

var (
	// TimeoutDrop disarms the timer, which is then removed from the loop.
	TimeoutDrop = TimeoutAction{}
)

var _ EventSource[time.Time] = (*Timer)(nil)

// ToDuration rearms the timer to fire d after the current time.
func ToDuration(d time.Duration) TimeoutAction {
	return TimeoutAction{kind: timeoutDuration, duration: d}
}

// ToInstant rearms the timer to fire at t.
func ToInstant(t time.Time) TimeoutAction {
	return TimeoutAction{kind: timeoutInstant, deadline: t}
}

// String implements fmt.Stringer.
func (x TimeoutAction) String() string {
	switch x.kind {
	case timeoutDuration:
		return "duration(" + x.duration.String() + ")"
	case timeoutInstant:
		return "instant(" + x.deadline.String() + ")"
	default:
		return "drop"
	}
}

// NewTimerImmediate returns a timer that fires as soon as it is registered.
func NewTimerImmediate() *Timer {
	return NewTimerFromDuration(0)
}

// NewTimerFromDuration returns a timer that fires d after it is registered.
func NewTimerFromDuration(d time.Duration) *Timer {
	return &Timer{duration: d, hasDuration: true}
}

// NewTimerFromDeadline returns a timer that fires at deadline.
func NewTimerFromDeadline(deadline time.Time) *Timer {
	return &Timer{deadline: deadline, hasDeadline: true}
}

// Deadline returns the current deadline, if the timer is armed and it has
// been resolved.
func (x *Timer) Deadline() (time.Time, bool) {
	return x.deadline, x.hasDeadline
}

// SetDuration rearms the timer to fire d from now, or d after registration
// if it is not registered.
func (x *Timer) SetDuration(d time.Duration) {
	if x.poll == nil {
		x.duration, x.hasDuration = d, true
		x.deadline, x.hasDeadline = time.Time{}, false
		return
	}
	x.SetDeadline(x.poll.Now().Add(d))
}

// SetDeadline rearms the timer to fire at deadline.
func (x *Timer) SetDeadline(deadline time.Time) {
	x.duration, x.hasDuration = 0, false
	x.deadline, x.hasDeadline = deadline, true
	x.schedule()
}

// schedule replaces the pending timeout, if registered.
func (x *Timer) schedule() {
	if x.poll == nil {
		return
	}
	if x.handle != 0 {
		x.poll.CancelTimeout(x.handle)
		x.handle = 0
	}
	if x.hasDeadline {
		x.handle = x.poll.InsertTimeout(x.deadline, x.token)
	}
}

// ProcessTimeout calls handler with the expired deadline, if token is the
// timer's own and the deadline has passed, then applies the returned action.
// PostActionRemove is returned once the timer is dropped, unless the handler
// rearmed it directly.
func (x *Timer) ProcessTimeout(token Token, handler func(deadline time.Time) TimeoutAction) (PostAction, error) {
	if x.poll == nil || token != x.token || !x.hasDeadline || x.poll.Now().Before(x.deadline) {
		return PostActionContinue, nil
	}

	fired := x.deadline
	x.poll.CancelTimeout(x.handle)
	x.handle = 0
	x.deadline, x.hasDeadline = time.Time{}, false

	action := handler(fired)

	switch action.kind {
	case timeoutDuration:
		x.SetDuration(action.duration)
	case timeoutInstant:
		x.SetDeadline(action.deadline)
	default:
		if !x.hasDeadline {
			return PostActionRemove, nil
		}
	}

	return PostActionContinue, nil
}

// ProcessEvents implements [EventSource]. The callback receives the expired
// deadline. The timer is dropped unless the callback rearms it, using
// SetDuration or SetDeadline.
func (x *Timer) ProcessEvents(_ Readiness, token Token, callback func(time.Time)) (PostAction, error) {
	return x.ProcessTimeout(token, func(deadline time.Time) TimeoutAction {
		callback(deadline)
		return TimeoutDrop
	})
}

// Register implements [EventSource].
func (x *Timer) Register(poll *Poll, factory *TokenFactory) error {
	x.poll = poll
	x.token = factory.Token()
	if x.hasDuration {
		x.deadline, x.hasDeadline = poll.Now().Add(x.duration), true
		x.duration, x.hasDuration = 0, false
	}
	x.schedule()
	return nil
}

// Reregister implements [EventSource].
func (x *Timer) Reregister(poll *Poll, factory *TokenFactory) error {
	if x.poll != nil && x.handle != 0 {
		x.poll.CancelTimeout(x.handle)
		x.handle = 0
	}
	return x.Register(poll, factory)
}

// Unregister implements [EventSource]. The deadline is retained.
func (x *Timer) Unregister(poll *Poll) error {
	if x.handle != 0 {
		poll.CancelTimeout(x.handle)
		x.handle = 0
	}
	x.poll = nil
	return nil
}
