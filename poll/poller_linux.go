//go:build linux

package poll

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// fastPoller manages readiness registration using epoll.
type fastPoller struct {
	epfd     int
	eventBuf [256]unix.EpollEvent // preallocated
	table    fdTable
	closed   atomic.Bool
}

// init initializes the epoll instance.
func (p *fastPoller) init() error {
	if p.closed.Load() {
		return ErrPollClosed
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("poll: epoll_create1: %w", err)
	}
	p.epfd = epfd

	return nil
}

// close closes the epoll instance, it is idempotent.
func (p *fastPoller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return unix.Close(p.epfd)
}

func (p *fastPoller) register(fd int, interest Interest, mode Mode, token Token) error {
	if p.closed.Load() {
		return ErrPollClosed
	}

	if err := p.table.add(fd, fdInfo{token: token, interest: interest, mode: mode}); err != nil {
		return err
	}

	ev := unix.EpollEvent{
		Events: toEpoll(interest, mode),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		_, _ = p.table.remove(fd) // rollback
		return fmt.Errorf("poll: epoll_ctl add fd %d: %w", fd, err)
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

	ev := unix.EpollEvent{
		Events: toEpoll(interest, mode),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		p.table.restore(fd, old)
		return fmt.Errorf("poll: epoll_ctl mod fd %d: %w", fd, err)
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

	if _, err := p.table.remove(fd); err != nil {
		return err
	}

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("poll: epoll_ctl del fd %d: %w", fd, err)
	}

	return nil
}

// wait blocks for up to timeoutMs (-1 is indefinite), appending ready fds to
// out. Interrupted waits return no events, and no error.
func (p *fastPoller) wait(timeoutMs int, out []event) ([]event, error) {
	if p.closed.Load() {
		return out, ErrPollClosed
	}

	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, fmt.Errorf("poll: epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		info := p.table.lookup(int(p.eventBuf[i].Fd))
		if !info.active {
			continue
		}
		out = append(out, event{
			token:     info.token,
			readiness: fromEpoll(p.eventBuf[i].Events),
		})
	}

	return out, nil
}

func toEpoll(interest Interest, mode Mode) uint32 {
	var events uint32
	if interest.Readable {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest.Writable {
		events |= unix.EPOLLOUT
	}
	if mode == Edge {
		events |= unix.EPOLLET
	}
	return events
}

func fromEpoll(events uint32) Readiness {
	return Readiness{
		// hangup is reported as readable, so the reader observes EOF
		Readable: events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		Writable: events&unix.EPOLLOUT != 0,
		Error:    events&unix.EPOLLERR != 0,
	}
}
