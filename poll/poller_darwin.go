//go:build darwin

package poll

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// fastPoller manages readiness registration using kqueue.
type fastPoller struct {
	kq       int
	eventBuf [256]unix.Kevent_t // preallocated
	table    fdTable
	closed   atomic.Bool
}

// init initializes the kqueue instance.
func (p *fastPoller) init() error {
	if p.closed.Load() {
		return ErrPollClosed
	}

	kq, err := unix.Kqueue()
	if err != nil {
		return fmt.Errorf("poll: kqueue: %w", err)
	}
	unix.CloseOnExec(kq)
	p.kq = kq

	return nil
}

// close closes the kqueue instance, it is idempotent.
func (p *fastPoller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return unix.Close(p.kq)
}

func (p *fastPoller) register(fd int, interest Interest, mode Mode, token Token) error {
	if p.closed.Load() {
		return ErrPollClosed
	}

	if err := p.table.add(fd, fdInfo{token: token, interest: interest, mode: mode}); err != nil {
		return err
	}

	if kevents := toKevents(fd, interest, addFlags(mode)); len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			_, _ = p.table.remove(fd) // rollback
			return fmt.Errorf("poll: kevent add fd %d: %w", fd, err)
		}
	}

	return nil
}

func (p *fastPoller) reregister(fd int, interest Interest, mode Mode, token Token) error {
	if p.closed.Load() {
		return ErrPollClosed
	}

	old, err := p.table.set(fd, fdInfo{token: token, interest: interest, mode: mode})
	if err != nil {
		return err
	}

	// drop filters no longer wanted, errors are ignored on delete
	removed := Interest{
		Readable: old.interest.Readable && !interest.Readable,
		Writable: old.interest.Writable && !interest.Writable,
	}
	if kevents := toKevents(fd, removed, unix.EV_DELETE); len(kevents) > 0 {
		_, _ = unix.Kevent(p.kq, kevents, nil, nil)
	}

	// EV_ADD on an existing filter modifies it in place
	if kevents := toKevents(fd, interest, addFlags(mode)); len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			p.table.restore(fd, old)
			return fmt.Errorf("poll: kevent mod fd %d: %w", fd, err)
		}
	}

	return nil
}

// unregister removes fd from monitoring.
//
// Always unregister before closing the fd, to prevent stale event delivery
// due to fd recycling.
func (p *fastPoller) unregister(fd int) error {
	if p.closed.Load() {
		return ErrPollClosed
	}

	old, err := p.table.remove(fd)
	if err != nil {
		return err
	}

	if kevents := toKevents(fd, old.interest, unix.EV_DELETE); len(kevents) > 0 {
		_, _ = unix.Kevent(p.kq, kevents, nil, nil) // ignore errors on delete
	}

	return nil
}

// wait blocks for up to timeoutMs (-1 is indefinite), appending ready fds to
// out. Interrupted waits return no events, and no error.
func (p *fastPoller) wait(timeoutMs int, out []event) ([]event, error) {
	if p.closed.Load() {
		return out, ErrPollClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, fmt.Errorf("poll: kevent wait: %w", err)
	}

	for i := 0; i < n; i++ {
		kev := &p.eventBuf[i]
		info := p.table.lookup(int(kev.Ident))
		if !info.active {
			continue
		}
		out = append(out, event{
			token:     info.token,
			readiness: fromKevent(kev),
		})
	}

	return out, nil
}

func addFlags(mode Mode) uint16 {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if mode == Edge {
		flags |= unix.EV_CLEAR
	}
	return flags
}

func toKevents(fd int, interest Interest, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if interest.Readable {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if interest.Writable {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return kevents
}

func fromKevent(kev *unix.Kevent_t) Readiness {
	var r Readiness
	switch kev.Filter {
	case unix.EVFILT_READ:
		r.Readable = true
	case unix.EVFILT_WRITE:
		r.Writable = true
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		r.Error = true
	}
	return r
}
