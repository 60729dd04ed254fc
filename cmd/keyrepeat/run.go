package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	keyrepeat "github.com/joeycumines/go-keyrepeat"
	"github.com/joeycumines/go-keyrepeat/poll"
	"github.com/joeycumines/logiface"
	"github.com/spf13/cobra"
)

type (
	// keyHandler is implemented by keyrepeat.Keyboard.
	keyHandler interface {
		Press(event keyrepeat.KeyEvent) error
		Release(event keyrepeat.KeyEvent) error
	}

	// keyInput is a source of key presses and releases.
	keyInput interface {
		io.Closer
		// Path identifies the device.
		Path() string
		// Forward blocks, passing key events to handler, until the device is
		// closed or fails.
		Forward(handler keyHandler) error
	}
)

func run(cmd *cobra.Command, _ []string) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	if rate == 0 {
		return errors.New("rate must be positive")
	}
	if logRate < 0 {
		return errors.New("log-rate must not be negative")
	}

	logger := newLogger(cmd.ErrOrStderr(), level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, err := openInput(devicePath, grab)
	if err != nil {
		return err
	}
	defer input.Close()

	logger.Info().
		Str(`device`, input.Path()).
		Bool(`grab`, grab).
		Log(`reading keyboard`)

	return repeatKeys(ctx, logger, input, keyrepeat.Repeat(rate, delay), newRepeatLimiter(logRate))
}

// repeatKeys runs the event loop, logging every repeat of the keys read from
// input, until input fails, or ctx is done.
func repeatKeys(ctx context.Context, logger *logiface.Logger[logiface.Event], input keyInput, info keyrepeat.RepeatInfo, limiter *catrate.Limiter) error {
	loop, err := poll.New(poll.WithLogger(logger))
	if err != nil {
		return err
	}
	defer loop.Close()

	sender, source, err := keyrepeat.New(keyrepeat.WithLogger(logger))
	if err != nil {
		return err
	}

	kb, err := keyrepeat.NewKeyboard(sender, keyrepeat.WithLogger(logger), keyrepeat.WithRepeatsFunc(repeats))
	if err != nil {
		_ = sender.Close()
		return err
	}
	defer kb.Close()

	var total uint64
	if _, err := poll.InsertSource(loop, source, func(event keyrepeat.KeyEvent) {
		total++
		if _, ok := limiter.Allow(event.RawCode); !ok {
			return
		}
		logger.Info().
			Int64(`code`, int64(event.RawCode)).
			Int64(`time`, int64(event.Time)).
			Uint64(`total`, total).
			Log(`repeat`)
	}); err != nil {
		return err
	}

	if err := kb.SetRepeatInfo(info); err != nil {
		return err
	}

	inputErr := make(chan error, 1)
	go func() {
		// closing the keyboard removes the source, stopping the loop
		defer kb.Close()
		inputErr <- input.Forward(kb)
	}()

	err = loop.Run(ctx, -1, func() {
		if loop.Len() == 0 {
			loop.Signal().Stop()
		}
	})

	logger.Info().
		Uint64(`total`, total).
		Log(`stopped`)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}

	select {
	case err := <-inputErr:
		if err != nil {
			return fmt.Errorf("reading %s: %w", input.Path(), err)
		}
	default:
	}
	return nil
}

// newRepeatLimiter returns a limiter allowing perSecond repeat logs per key,
// or nil (unlimited) if perSecond is zero.
func newRepeatLimiter(perSecond int) *catrate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return catrate.NewLimiter(map[time.Duration]int{
		time.Second: perSecond,
	})
}
