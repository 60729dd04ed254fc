package poll

import (
	"errors"
	"sync"
	"sync/atomic"
)

type (
	// ChannelEvent is emitted by a [Channel], for each message, in send
	// order, then once with Closed set, after the last [Sender] is closed.
	ChannelEvent[T any] struct {
		Msg    T
		Closed bool
	}

	// Sender is the sending half of a [Channel]. It is safe for concurrent
	// use. Each Sender (including clones) must be closed, the receiver
	// reports Closed once all of them have been.
	Sender[T any] struct {
		state  *channelState[T]
		ping   *Ping
		closed atomic.Bool
	}

	// Channel is an [EventSource] delivering messages sent from other
	// goroutines, in FIFO order.
	//
	// Pending messages are delivered on every call to ProcessEvents,
	// regardless of token, so a composite source that embeds a Channel
	// observes any message sent before the events it is processing.
	Channel[T any] struct {
		state  *channelState[T]
		source *PingSource
		batch  []T
		done   bool
	}

	channelState[T any] struct {
		queue   chunkedQueue[T]
		mu      sync.Mutex
		senders int
		// closed is set once the receiving side is closed
		closed bool
	}
)

var _ EventSource[ChannelEvent[struct{}]] = (*Channel[struct{}])(nil)

// NewChannel creates a connected Sender and Channel.
func NewChannel[T any]() (*Sender[T], *Channel[T], error) {
	ping, source, err := NewPing()
	if err != nil {
		return nil, nil, err
	}
	state := &channelState[T]{senders: 1}
	return &Sender[T]{state: state, ping: ping}, &Channel[T]{state: state, source: source}, nil
}

// Send enqueues msg, and wakes the receiving loop. It fails with
// ErrSenderClosed after Close, or ErrChannelClosed if the receiver is gone.
func (x *Sender[T]) Send(msg T) error {
	if x.closed.Load() {
		return ErrSenderClosed
	}

	x.state.mu.Lock()
	if x.state.closed {
		x.state.mu.Unlock()
		return ErrChannelClosed
	}
	x.state.queue.push(msg)
	x.state.mu.Unlock()

	if err := x.ping.Ping(); err != nil {
		if errors.Is(err, ErrPingClosed) {
			return ErrChannelClosed
		}
		return err
	}
	return nil
}

// Clone returns a new Sender for the same Channel. The receiver reports
// Closed only once every clone is closed, too.
func (x *Sender[T]) Clone() (*Sender[T], error) {
	if x.closed.Load() {
		return nil, ErrSenderClosed
	}
	x.state.mu.Lock()
	x.state.senders++
	x.state.mu.Unlock()
	return &Sender[T]{state: x.state, ping: x.ping}, nil
}

// Close releases this Sender. It is idempotent. Messages already sent are
// still delivered.
func (x *Sender[T]) Close() error {
	if x.closed.Swap(true) {
		return nil
	}

	x.state.mu.Lock()
	x.state.senders--
	last := x.state.senders == 0
	x.state.mu.Unlock()

	if last {
		// the receiver may already be gone
		if err := x.ping.Ping(); err != nil && !errors.Is(err, ErrPingClosed) {
			return err
		}
	}
	return nil
}

// ProcessEvents delivers every message pending at the time of the call,
// followed by the closed signal if all senders have been closed, in which
// case PostActionRemove is returned.
func (x *Channel[T]) ProcessEvents(readiness Readiness, token Token, callback func(ChannelEvent[T])) (PostAction, error) {
	if x.done {
		return PostActionRemove, nil
	}

	if _, err := x.source.ProcessEvents(readiness, token, func(struct{}) {}); err != nil {
		return PostActionContinue, err
	}

	// snapshot, so messages sent by the callback wait for the next dispatch
	x.state.mu.Lock()
	x.batch = x.state.queue.drainTo(x.batch[:0])
	disconnected := x.state.senders == 0
	x.state.mu.Unlock()

	for i, msg := range x.batch {
		var zero T
		x.batch[i] = zero
		callback(ChannelEvent[T]{Msg: msg})
	}

	if disconnected {
		x.done = true
		callback(ChannelEvent[T]{Closed: true})
		return PostActionRemove, nil
	}

	return PostActionContinue, nil
}

// Register implements [EventSource].
func (x *Channel[T]) Register(poll *Poll, factory *TokenFactory) error {
	return x.source.Register(poll, factory)
}

// Reregister implements [EventSource].
func (x *Channel[T]) Reregister(poll *Poll, factory *TokenFactory) error {
	return x.source.Reregister(poll, factory)
}

// Unregister implements [EventSource].
func (x *Channel[T]) Unregister(poll *Poll) error {
	return x.source.Unregister(poll)
}

// Pending returns the number of queued, undelivered messages.
func (x *Channel[T]) Pending() int {
	x.state.mu.Lock()
	defer x.state.mu.Unlock()
	return x.state.queue.len()
}

// Close discards pending messages, and releases the underlying ping. It must
// be unregistered first. Subsequent sends fail with ErrChannelClosed.
func (x *Channel[T]) Close() error {
	x.state.mu.Lock()
	x.state.closed = true
	x.state.queue.clear()
	x.state.mu.Unlock()
	return x.source.Close()
}
