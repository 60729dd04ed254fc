package poll

import (
	"sync"
)

type (
	// Ping wakes the loop from any goroutine, causing its [PingSource] to
	// emit a single event. Multiple pings before the next dispatch coalesce.
	Ping struct {
		state *pingState
	}

	// PingSource is the [EventSource] half of a [Ping].
	PingSource struct {
		state      *pingState
		token      Token
		registered bool
	}

	pingState struct {
		mu      sync.RWMutex
		readFd  int
		writeFd int
		closed  bool
	}
)

var _ EventSource[struct{}] = (*PingSource)(nil)

// NewPing creates a connected Ping and PingSource. The source owns the
// underlying file descriptors, and must be closed, see [PingSource.Close].
func NewPing() (*Ping, *PingSource, error) {
	readFd, writeFd, err := createWakeFd()
	if err != nil {
		return nil, nil, err
	}
	state := &pingState{readFd: readFd, writeFd: writeFd}
	return &Ping{state: state}, &PingSource{state: state}, nil
}

// Ping signals the source. It is safe to call from any goroutine, and
// returns ErrPingClosed if the source has been closed.
func (x *Ping) Ping() error {
	x.state.mu.RLock()
	defer x.state.mu.RUnlock()
	if x.state.closed {
		return ErrPingClosed
	}
	return signalWakeFd(x.state.writeFd)
}

// ProcessEvents drains pending pings, calling callback once, if token is
// the source's own.
func (x *PingSource) ProcessEvents(_ Readiness, token Token, callback func(struct{})) (PostAction, error) {
	if !x.registered || token != x.token {
		return PostActionContinue, nil
	}
	if err := drainWakeFd(x.state.readFd); err != nil {
		return PostActionContinue, err
	}
	callback(struct{}{})
	return PostActionContinue, nil
}

// Register implements [EventSource].
func (x *PingSource) Register(poll *Poll, factory *TokenFactory) error {
	token := factory.Token()
	if err := poll.Register(x.state.readFd, InterestRead, Level, token); err != nil {
		return err
	}
	x.token = token
	x.registered = true
	return nil
}

// Reregister implements [EventSource].
func (x *PingSource) Reregister(poll *Poll, factory *TokenFactory) error {
	token := factory.Token()
	if err := poll.Reregister(x.state.readFd, InterestRead, Level, token); err != nil {
		return err
	}
	x.token = token
	return nil
}

// Unregister implements [EventSource].
func (x *PingSource) Unregister(poll *Poll) error {
	if !x.registered {
		return nil
	}
	x.registered = false
	return poll.Unregister(x.state.readFd)
}

// Close releases the file descriptors. It must be unregistered first.
// Subsequent calls to [Ping.Ping] fail with ErrPingClosed.
func (x *PingSource) Close() error {
	x.state.mu.Lock()
	defer x.state.mu.Unlock()
	if x.state.closed {
		return nil
	}
	x.state.closed = true
	err := closeFD(x.state.readFd)
	if x.state.writeFd != x.state.readFd {
		if e := closeFD(x.state.writeFd); err == nil {
			err = e
		}
	}
	return err
}
