package poll

import (
	"sync"
)

// Initial size of the direct-indexed fd table.
const initialFDs = 1024

// maxFDLimit is the maximum FD value we support for dynamic growth.
const maxFDLimit = 100000000

// event is a single readiness notification, routed back to its source by token.
type event struct {
	token     Token
	readiness Readiness
}

// fdInfo stores per-FD registration information.
type fdInfo struct {
	token    Token
	interest Interest
	mode     Mode
	active   bool
}

// fdTable maps fds to their registration, shared by the platform pollers.
// It uses a dynamic slice, indexed directly by fd, instead of a map.
type fdTable struct {
	mu  sync.RWMutex
	fds []fdInfo
}

func checkFD(fd int) error {
	if fd < 0 || fd >= maxFDLimit {
		return ErrFDOutOfRange
	}
	return nil
}

// add claims fd, growing the table as necessary.
func (t *fdTable) add(fd int, info fdInfo) error {
	if err := checkFD(fd); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if fd >= len(t.fds) {
		// grow in chunks to minimize allocations
		newSize := max(fd*2+1, initialFDs)
		if newSize > maxFDLimit {
			newSize = maxFDLimit + 1
		}
		newFds := make([]fdInfo, newSize)
		copy(newFds, t.fds)
		t.fds = newFds
	}

	if t.fds[fd].active {
		return ErrAlreadyRegistered
	}

	info.active = true
	t.fds[fd] = info
	return nil
}

// set replaces the registration of fd, returning the previous value.
func (t *fdTable) set(fd int, info fdInfo) (fdInfo, error) {
	if err := checkFD(fd); err != nil {
		return fdInfo{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if fd >= len(t.fds) || !t.fds[fd].active {
		return fdInfo{}, ErrNotRegistered
	}

	old := t.fds[fd]
	info.active = true
	t.fds[fd] = info
	return old, nil
}

// remove clears fd, returning the previous value.
func (t *fdTable) remove(fd int) (fdInfo, error) {
	if err := checkFD(fd); err != nil {
		return fdInfo{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if fd >= len(t.fds) || !t.fds[fd].active {
		return fdInfo{}, ErrNotRegistered
	}

	old := t.fds[fd]
	t.fds[fd] = fdInfo{}
	return old, nil
}

// restore reinstates a registration removed or replaced by a failed syscall.
func (t *fdTable) restore(fd int, info fdInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < len(t.fds) {
		t.fds[fd] = info
	}
}

func (t *fdTable) lookup(fd int) (info fdInfo) {
	t.mu.RLock()
	if fd >= 0 && fd < len(t.fds) {
		info = t.fds[fd]
	}
	t.mu.RUnlock()
	return
}
