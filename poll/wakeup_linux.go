//go:build linux

package poll

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd creates an eventfd for wake-up notifications (Linux).
// Returns the single eventfd as both read and write ends.
func createWakeFd() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

// signalWakeFd increments the eventfd counter. A full counter already
// signals readiness, so EAGAIN is not an error.
func signalWakeFd(fd int) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(fd, buf[:]); err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// drainWakeFd resets the eventfd counter.
func drainWakeFd(fd int) error {
	var buf [8]byte
	if _, err := unix.Read(fd, buf[:]); err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}
