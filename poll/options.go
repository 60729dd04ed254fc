package poll

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop and Poll creation.
type loopOptions struct {
	clock  Clock
	logger *logiface.Logger[logiface.Event]
}

// --- Loop Options ---

// LoopOption configures a Loop (or a standalone Poll).
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithClock sets the clock used for timer deadlines.
// Defaults to SystemClock. A ManualClock may be used to dispatch timers
// deterministically, e.g. in tests, in which case the loop should be
// dispatched with a zero timeout, as the poller still waits in real time.
func WithClock(clock Clock) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if clock == nil {
			return errors.New("poll: nil clock")
		}
		opts.clock = clock
		return nil
	}}
}

// WithLogger sets the logger used by the loop. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		clock: SystemClock,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
