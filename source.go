package keyrepeat

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-keyrepeat/poll"
	"github.com/joeycumines/logiface"
)

type (
	// Source is a [poll.EventSource] emitting synthetic key repeats. It is
	// created by [New], and driven by the [RepeatMessage] values sent on the
	// paired sender. Like every source, it must only be used from the
	// goroutine dispatching its loop.
	Source struct {
		logger    *logiface.Logger[logiface.Event]
		channel   *poll.Channel[RepeatMessage]
		timer     *poll.Timer
		key       *KeyEvent
		idleDelay time.Duration
		delay     uint32
		gap       uint32
		enabled   bool
		steady    bool
		removed   bool
	}

	// State describes what a [Source] will do on its next timer expiry.
	State uint8
)

const (
	// StateIdle means no key is held, or repeating is disabled.
	StateIdle State = iota
	// StateInitialDelay means a key is held, and the first repeat is pending.
	StateInitialDelay
	// StateSteadyGap means a key is held, and has repeated at least once.
	StateSteadyGap
	// StateRemoved means the sender was closed, and the source is done.
	StateRemoved
)

var _ poll.EventSource[KeyEvent] = (*Source)(nil)

// New creates a disabled Source, and the sender controlling it. Closing the
// sender (every clone of it) removes the source from its loop.
func New(opts ...Option) (*poll.Sender[RepeatMessage], *Source, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, nil, err
	}

	sender, channel, err := poll.NewChannel[RepeatMessage]()
	if err != nil {
		return nil, nil, fmt.Errorf("keyrepeat: control channel: %w", err)
	}

	return sender, &Source{
		logger:    cfg.logger,
		channel:   channel,
		timer:     poll.NewTimerImmediate(),
		idleDelay: cfg.idleDelay,
	}, nil
}

// String implements fmt.Stringer.
func (x State) String() string {
	switch x {
	case StateIdle:
		return "idle"
	case StateInitialDelay:
		return "initial-delay"
	case StateSteadyGap:
		return "steady-gap"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("State(%d)", uint8(x))
	}
}

// State returns the current state, for diagnostics.
func (x *Source) State() State {
	switch {
	case x.removed:
		return StateRemoved
	case x.key == nil:
		return StateIdle
	case x.steady:
		return StateSteadyGap
	default:
		return StateInitialDelay
	}
}

// Cadence returns the configured delay before the first repeat, the gap
// between repeats, and whether repeating is enabled.
func (x *Source) Cadence() (delay, gap time.Duration, enabled bool) {
	return time.Duration(x.delay) * time.Millisecond, time.Duration(x.gap) * time.Millisecond, x.enabled
}

// ProcessEvents implements [poll.EventSource]. Every pending control message
// is applied, in order, before the timer is serviced, at most once.
func (x *Source) ProcessEvents(readiness poll.Readiness, token poll.Token, callback func(KeyEvent)) (poll.PostAction, error) {
	if x.removed {
		return poll.PostActionRemove, nil
	}

	action, err := x.channel.ProcessEvents(readiness, token, x.handleMessage)
	if err != nil {
		return poll.PostActionContinue, err
	}
	if action == poll.PostActionRemove || x.removed {
		x.removed = true
		x.key = nil
		x.logger.Debug().Log(`keyrepeat: sender closed, removing`)
		return poll.PostActionRemove, nil
	}

	// the timer never drops itself, it is always rearmed
	if _, err := x.timer.ProcessTimeout(token, func(time.Time) poll.TimeoutAction {
		return x.handleTimeout(callback)
	}); err != nil {
		return poll.PostActionContinue, err
	}

	return poll.PostActionContinue, nil
}

func (x *Source) handleMessage(event poll.ChannelEvent[RepeatMessage]) {
	if event.Closed {
		x.removed = true
		return
	}

	switch msg := event.Msg.(type) {
	case StopRepeat:
		x.key = nil
		x.logger.Debug().Log(`keyrepeat: stop`)

	case StartRepeat:
		if !x.enabled {
			x.logger.Debug().
				Int64(`code`, int64(msg.Event.RawCode)).
				Log(`keyrepeat: start ignored, repeat disabled`)
			return
		}
		key := msg.Event
		key.Time += x.delay
		x.key = &key
		x.steady = false
		x.timer.SetDuration(time.Duration(x.delay) * time.Millisecond)
		x.logger.Debug().
			Int64(`code`, int64(key.RawCode)).
			Int64(`time`, int64(key.Time)).
			Log(`keyrepeat: start`)

	case UpdateRepeatInfo:
		if msg.Info.Disabled {
			x.key = nil
			x.enabled = false
			x.logger.Debug().Log(`keyrepeat: disabled`)
			return
		}
		x.gap = msg.Info.Gap()
		x.delay = msg.Info.Delay
		x.enabled = true
		x.timer.SetDuration(time.Duration(x.delay) * time.Millisecond)
		x.logger.Debug().
			Int64(`delay_ms`, int64(x.delay)).
			Int64(`gap_ms`, int64(x.gap)).
			Log(`keyrepeat: cadence updated`)

	default:
		x.logger.Warning().
			Str(`type`, fmt.Sprintf(`%T`, event.Msg)).
			Log(`keyrepeat: unknown message`)
	}
}

func (x *Source) handleTimeout(callback func(KeyEvent)) poll.TimeoutAction {
	if !x.enabled || x.key == nil {
		return poll.ToDuration(x.idleInterval())
	}

	callback(*x.key)
	x.logger.Trace().
		Int64(`code`, int64(x.key.RawCode)).
		Int64(`time`, int64(x.key.Time)).
		Log(`keyrepeat: repeat`)

	x.key.Time += x.gap
	x.steady = true
	return poll.ToDuration(time.Duration(x.gap) * time.Millisecond)
}

func (x *Source) idleInterval() time.Duration {
	if x.delay == 0 {
		return x.idleDelay
	}
	return time.Duration(x.delay) * time.Millisecond
}

// Register implements [poll.EventSource]. Partial registration is not
// rolled back.
func (x *Source) Register(p *poll.Poll, factory *poll.TokenFactory) error {
	if err := x.channel.Register(p, factory); err != nil {
		return err
	}
	if err := x.timer.Register(p, factory); err != nil {
		return err
	}
	x.logger.Debug().Log(`keyrepeat: registered`)
	return nil
}

// Reregister implements [poll.EventSource].
func (x *Source) Reregister(p *poll.Poll, factory *poll.TokenFactory) error {
	if err := x.channel.Reregister(p, factory); err != nil {
		return err
	}
	return x.timer.Reregister(p, factory)
}

// Unregister implements [poll.EventSource].
func (x *Source) Unregister(p *poll.Poll) error {
	if err := x.channel.Unregister(p); err != nil {
		return err
	}
	return x.timer.Unregister(p)
}

// Close releases the control channel, it must be unregistered first. It is
// called by the loop, when the source is removed.
func (x *Source) Close() error {
	x.removed = true
	x.key = nil
	return x.channel.Close()
}
