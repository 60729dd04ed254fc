package poll

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// signalKey is the token key reserved for the loop's own wake-up ping.
const signalKey = 0

type (
	// Loop multiplexes many [EventSource] implementations onto the goroutine
	// that dispatches it. See the package documentation for an overview.
	Loop struct {
		poll    *Poll
		logger  *logiface.Logger[logiface.Event]
		sources map[uint32]loopSource
		signal  *LoopSignal
		wake    *PingSource
		nextKey uint32
		closed  bool
	}

	// LoopSignal stops or wakes a [Loop] from any goroutine.
	LoopSignal struct {
		ping *Ping
		stop atomic.Bool
	}

	// RegistrationToken identifies a source inserted into a [Loop].
	RegistrationToken struct {
		key uint32
	}

	// loopSource erases the event type of a sourceEntry.
	loopSource interface {
		process(readiness Readiness, token Token) (PostAction, error)
		register(poll *Poll, factory *TokenFactory) error
		reregister(poll *Poll, factory *TokenFactory) error
		unregister(poll *Poll) error
		isEnabled() bool
		setEnabled(enabled bool)
		close() error
	}

	sourceEntry[E any] struct {
		source   EventSource[E]
		callback func(E)
		enabled  bool
	}
)

// New creates a new Loop.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	p, err := newPoll(cfg)
	if err != nil {
		return nil, err
	}

	ping, wake, err := NewPing()
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	if err := wake.Register(p, NewTokenFactory(signalKey)); err != nil {
		_ = wake.Close()
		_ = p.Close()
		return nil, err
	}

	return &Loop{
		poll:    p,
		logger:  cfg.logger,
		sources: make(map[uint32]loopSource),
		signal:  &LoopSignal{ping: ping},
		wake:    wake,
		nextKey: signalKey + 1,
	}, nil
}

// InsertSource registers source with loop, calling callback for each event
// it emits. The source is removed once it returns PostActionRemove, or an
// error.
func InsertSource[E any](loop *Loop, source EventSource[E], callback func(E)) (RegistrationToken, error) {
	if source == nil {
		panic("poll: nil source")
	}
	if callback == nil {
		panic("poll: nil callback")
	}
	if loop.closed {
		return RegistrationToken{}, ErrLoopClosed
	}

	key := loop.nextKey
	loop.nextKey++

	entry := &sourceEntry[E]{source: source, callback: callback, enabled: true}
	// a partial registration is not unregistered, cleanup is left to the caller
	if err := entry.register(loop.poll, NewTokenFactory(key)); err != nil {
		return RegistrationToken{}, err
	}
	loop.sources[key] = entry

	loop.logger.Debug().
		Uint64(`source`, uint64(key)).
		Log(`poll: source inserted`)

	return RegistrationToken{key: key}, nil
}

// Poll returns the loop's readiness registry.
func (l *Loop) Poll() *Poll { return l.poll }

// Signal returns a handle to stop or wake the loop from other goroutines.
func (l *Loop) Signal() *LoopSignal { return l.signal }

// Len returns the number of sources in the loop, including disabled ones.
func (l *Loop) Len() int { return len(l.sources) }

// Remove unregisters the source identified by token, and drops it from the
// loop. Sources implementing io.Closer are closed.
func (l *Loop) Remove(token RegistrationToken) error {
	if l.closed {
		return ErrLoopClosed
	}
	if _, ok := l.sources[token.key]; !ok {
		return ErrSourceNotFound
	}
	return l.remove(token.key)
}

// Disable unregisters the source, keeping it in the loop, until Enable.
func (l *Loop) Disable(token RegistrationToken) error {
	if l.closed {
		return ErrLoopClosed
	}
	entry, ok := l.sources[token.key]
	if !ok {
		return ErrSourceNotFound
	}
	return l.disable(token.key, entry)
}

// Enable registers a disabled source again, with fresh tokens. Enabling an
// enabled source is a no-op.
func (l *Loop) Enable(token RegistrationToken) error {
	if l.closed {
		return ErrLoopClosed
	}
	entry, ok := l.sources[token.key]
	if !ok {
		return ErrSourceNotFound
	}
	if entry.isEnabled() {
		return nil
	}
	if err := entry.register(l.poll, NewTokenFactory(token.key)); err != nil {
		return err
	}
	entry.setEnabled(true)
	return nil
}

// Dispatch waits up to timeout (negative waits indefinitely) for events,
// then processes them, in order. Sources that fail are logged, removed, and
// the first error is returned, after every event has been processed.
func (l *Loop) Dispatch(timeout time.Duration) error {
	if l.closed {
		return ErrLoopClosed
	}

	events, err := l.poll.poll(timeout)
	if err != nil {
		return err
	}

	var firstErr error
	for _, ev := range events {
		if ev.token.key == signalKey {
			if _, err := l.wake.ProcessEvents(ev.readiness, ev.token, func(struct{}) {}); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}

		entry, ok := l.sources[ev.token.key]
		if !ok || !entry.isEnabled() {
			// removed or disabled earlier in this batch
			continue
		}

		action, err := entry.process(ev.readiness, ev.token)
		if err != nil {
			l.logger.Err().
				Err(err).
				Uint64(`source`, uint64(ev.token.key)).
				Log(`poll: source failed, removing`)
			_ = l.remove(ev.token.key)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := l.apply(ev.token.key, entry, action); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Run dispatches the loop until ctx is done, or [LoopSignal.Stop] is called,
// calling idle (if non-nil) after each dispatch. Source errors are returned
// immediately. If ctx is done, its error is returned.
func (l *Loop) Run(ctx context.Context, timeout time.Duration, idle func()) error {
	l.signal.stop.Store(false)
	defer context.AfterFunc(ctx, l.signal.Stop)()

	for !l.signal.stop.Load() {
		if err := l.Dispatch(timeout); err != nil {
			return err
		}
		if idle != nil {
			idle()
		}
	}

	return ctx.Err()
}

// Close removes every source, closing those implementing io.Closer, then
// releases the poller. It is idempotent.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}

	var errs []error
	for key := range l.sources {
		if err := l.remove(key); err != nil {
			errs = append(errs, err)
		}
	}

	l.closed = true
	if err := l.wake.Unregister(l.poll); err != nil {
		errs = append(errs, err)
	}
	if err := l.wake.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := l.poll.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (l *Loop) apply(key uint32, entry loopSource, action PostAction) error {
	switch action {
	case PostActionContinue:
		return nil
	case PostActionReregister:
		if err := entry.reregister(l.poll, NewTokenFactory(key)); err != nil {
			l.logger.Err().
				Err(err).
				Uint64(`source`, uint64(key)).
				Log(`poll: reregister failed, removing`)
			_ = l.remove(key)
			return err
		}
		return nil
	case PostActionDisable:
		return l.disable(key, entry)
	case PostActionRemove:
		return l.remove(key)
	default:
		return nil
	}
}

func (l *Loop) disable(key uint32, entry loopSource) error {
	if !entry.isEnabled() {
		return nil
	}
	entry.setEnabled(false)
	l.logger.Debug().
		Uint64(`source`, uint64(key)).
		Log(`poll: source disabled`)
	return entry.unregister(l.poll)
}

func (l *Loop) remove(key uint32) error {
	entry := l.sources[key]
	delete(l.sources, key)

	var err error
	if entry.isEnabled() {
		err = entry.unregister(l.poll)
	}
	if e := entry.close(); err == nil {
		err = e
	}

	l.logger.Debug().
		Uint64(`source`, uint64(key)).
		Log(`poll: source removed`)

	return err
}

// Stop causes [Loop.Run] to return, after the current dispatch.
func (x *LoopSignal) Stop() {
	x.stop.Store(true)
	_ = x.ping.Ping()
}

// Wakeup interrupts a blocked dispatch, without stopping the loop.
func (x *LoopSignal) Wakeup() {
	_ = x.ping.Ping()
}

func (x *sourceEntry[E]) process(readiness Readiness, token Token) (PostAction, error) {
	return x.source.ProcessEvents(readiness, token, x.callback)
}

func (x *sourceEntry[E]) register(poll *Poll, factory *TokenFactory) error {
	return x.source.Register(poll, factory)
}

func (x *sourceEntry[E]) reregister(poll *Poll, factory *TokenFactory) error {
	return x.source.Reregister(poll, factory)
}

func (x *sourceEntry[E]) unregister(poll *Poll) error {
	return x.source.Unregister(poll)
}

func (x *sourceEntry[E]) isEnabled() bool { return x.enabled }

func (x *sourceEntry[E]) setEnabled(enabled bool) { x.enabled = enabled }

func (x *sourceEntry[E]) close() error {
	if c, ok := x.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
