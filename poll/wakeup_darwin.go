//go:build darwin

package poll

import (
	"golang.org/x/sys/unix"
)

// createWakeFd creates a self-pipe for wake-up notifications (Darwin).
// Returns the read end and the write end of the pipe.
func createWakeFd() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}

	// on failure, close both pipe ends to avoid resource leak
	cleanup := func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}

	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])

	if err := unix.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return 0, 0, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return 0, 0, err
	}

	return fds[0], fds[1], nil
}

// signalWakeFd writes a single byte. A full pipe already signals readiness,
// so EAGAIN is not an error.
func signalWakeFd(fd int) error {
	if _, err := unix.Write(fd, []byte{1}); err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// drainWakeFd empties the pipe.
func drainWakeFd(fd int) error {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if err == unix.EAGAIN || (err == nil && n < len(buf)) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
