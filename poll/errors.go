package poll

import (
	"errors"
)

// Standard errors.
var (
	// ErrPollClosed is returned when operations are attempted on a closed poll.
	ErrPollClosed = errors.New("poll: poll closed")

	// ErrFDOutOfRange is returned for negative or excessively large fds.
	ErrFDOutOfRange = errors.New("poll: fd out of range (max 100000000)")

	// ErrAlreadyRegistered is returned when registering an fd twice.
	ErrAlreadyRegistered = errors.New("poll: fd already registered")

	// ErrNotRegistered is returned when modifying or removing an unknown fd.
	ErrNotRegistered = errors.New("poll: fd not registered")

	// ErrPingClosed is returned by [Ping.Ping] once the [PingSource] has been
	// closed.
	ErrPingClosed = errors.New("poll: ping closed")

	// ErrChannelClosed is returned by [Sender.Send] once the receiving
	// [Channel] has been closed.
	ErrChannelClosed = errors.New("poll: channel closed")

	// ErrSenderClosed is returned by [Sender] methods called after
	// [Sender.Close].
	ErrSenderClosed = errors.New("poll: sender closed")

	// ErrSourceNotFound is returned by [Loop] methods given an unknown or
	// already removed [RegistrationToken].
	ErrSourceNotFound = errors.New("poll: source not found")

	// ErrLoopClosed is returned when operations are attempted on a closed loop.
	ErrLoopClosed = errors.New("poll: loop closed")

	// ErrUnsupportedPlatform is returned on platforms without a poller.
	ErrUnsupportedPlatform = errors.New("poll: unsupported platform")
)
