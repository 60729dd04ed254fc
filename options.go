package keyrepeat

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultIdleDelay is the idle rearm interval used while no delay has been
// configured.
const DefaultIdleDelay = 600 * time.Millisecond

// options holds configuration for Source and Keyboard creation.
type options struct {
	logger    *logiface.Logger[logiface.Event]
	repeats   func(rawCode uint32) bool
	idleDelay time.Duration
}

// Option configures a [Source] or a [Keyboard]. Options that do not apply
// are ignored.
type Option interface {
	apply(*options) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithIdleDelay sets the interval the [Source] timer is rearmed with, while
// idle and no delay is configured. Defaults to DefaultIdleDelay.
func WithIdleDelay(d time.Duration) Option {
	return &optionImpl{func(opts *options) error {
		if d <= 0 {
			return errors.New("keyrepeat: idle delay must be positive")
		}
		opts.idleDelay = d
		return nil
	}}
}

// WithRepeatsFunc sets the predicate a [Keyboard] uses to decide whether a
// pressed key repeats. Defaults to every key.
func WithRepeatsFunc(fn func(rawCode uint32) bool) Option {
	return &optionImpl{func(opts *options) error {
		if fn == nil {
			return errors.New("keyrepeat: nil repeats func")
		}
		opts.repeats = fn
		return nil
	}}
}

// resolveOptions applies Option instances to options.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		idleDelay: DefaultIdleDelay,
		repeats:   func(uint32) bool { return true },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
