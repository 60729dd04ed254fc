//go:build linux || darwin

package poll

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	loop, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	return loop
}

// failingSource wraps a timer, failing once it fires.
type failingSource struct {
	*Timer
	err    error
	closed bool
}

func (x *failingSource) ProcessEvents(readiness Readiness, token Token, callback func(time.Time)) (PostAction, error) {
	var fired bool
	action, err := x.Timer.ProcessEvents(readiness, token, func(deadline time.Time) {
		fired = true
		callback(deadline)
	})
	if fired {
		return action, x.err
	}
	return action, err
}

func (x *failingSource) Close() error {
	x.closed = true
	return nil
}

func TestLoop_ChannelAndTimer(t *testing.T) {
	clock := NewManualClock(testEpoch)
	loop := newTestLoop(t, WithClock(clock))

	sender, ch, err := NewChannel[string]()
	require.NoError(t, err)

	var got []string
	_, err = InsertSource(loop, ch, func(e ChannelEvent[string]) {
		if e.Closed {
			got = append(got, `closed`)
			return
		}
		got = append(got, e.Msg)
	})
	require.NoError(t, err)

	_, err = InsertSource(loop, NewTimerFromDuration(time.Second), func(time.Time) {
		got = append(got, `timer`)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, loop.Len())

	require.NoError(t, sender.Send(`a`))
	require.NoError(t, loop.Dispatch(0))
	assert.Equal(t, []string{`a`}, got)

	clock.Advance(time.Second)
	require.NoError(t, loop.Dispatch(0))
	assert.Equal(t, []string{`a`, `timer`}, got)
	assert.Equal(t, 1, loop.Len())

	require.NoError(t, sender.Close())
	require.NoError(t, loop.Dispatch(0))
	assert.Equal(t, []string{`a`, `timer`, `closed`}, got)
	assert.Equal(t, 0, loop.Len())

	// the channel was closed on removal
	assert.ErrorIs(t, (&Ping{state: ch.source.state}).Ping(), ErrPingClosed)
}

func TestLoop_DisableEnable(t *testing.T) {
	clock := NewManualClock(testEpoch)
	loop := newTestLoop(t, WithClock(clock))

	var fired int
	token, err := InsertSource(loop, NewTimerFromDuration(time.Second), func(deadline time.Time) { fired++ })
	require.NoError(t, err)

	require.NoError(t, loop.Disable(token))
	require.NoError(t, loop.Disable(token))
	clock.Advance(2 * time.Second)
	require.NoError(t, loop.Dispatch(0))
	assert.Equal(t, 0, fired)

	require.NoError(t, loop.Enable(token))
	require.NoError(t, loop.Enable(token))
	require.NoError(t, loop.Dispatch(0))
	assert.Equal(t, 1, fired)

	assert.ErrorIs(t, loop.Remove(token), ErrSourceNotFound)
	assert.ErrorIs(t, loop.Disable(token), ErrSourceNotFound)
	assert.ErrorIs(t, loop.Enable(token), ErrSourceNotFound)
}

func TestLoop_SourceErrorRemovesSource(t *testing.T) {
	clock := NewManualClock(testEpoch)
	loop := newTestLoop(t, WithClock(clock))

	sourceErr := errors.New(`some error`)
	source := &failingSource{Timer: NewTimerImmediate(), err: sourceErr}

	var fired int
	_, err := InsertSource[time.Time](loop, source, func(time.Time) { fired++ })
	require.NoError(t, err)

	assert.ErrorIs(t, loop.Dispatch(0), sourceErr)
	assert.Equal(t, 1, fired)
	assert.True(t, source.closed)
	assert.Equal(t, 0, loop.Len())
}

// reregisterSource wraps a timer, requesting reregistration once it fires,
// which then fails.
type reregisterSource struct {
	*Timer
	err    error
	closed bool
}

func (x *reregisterSource) ProcessEvents(readiness Readiness, token Token, callback func(time.Time)) (PostAction, error) {
	var fired bool
	if _, err := x.Timer.ProcessEvents(readiness, token, func(deadline time.Time) {
		fired = true
		callback(deadline)
	}); err != nil {
		return PostActionContinue, err
	}
	if fired {
		return PostActionReregister, nil
	}
	return PostActionContinue, nil
}

func (x *reregisterSource) Reregister(*Poll, *TokenFactory) error { return x.err }

func (x *reregisterSource) Close() error {
	x.closed = true
	return nil
}

func TestLoop_ReregisterFailureRemovesSource(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()

	clock := NewManualClock(testEpoch)
	loop := newTestLoop(t, WithClock(clock), WithLogger(logger))

	reregErr := errors.New(`reregister failed`)
	source := &reregisterSource{Timer: NewTimerImmediate(), err: reregErr}

	var fired int
	_, err := InsertSource[time.Time](loop, source, func(time.Time) { fired++ })
	require.NoError(t, err)

	assert.ErrorIs(t, loop.Dispatch(0), reregErr)
	assert.Equal(t, 1, fired)
	assert.True(t, source.closed)
	assert.Equal(t, 0, loop.Len())
	assert.Contains(t, buf.String(), `"msg":"poll: reregister failed, removing"`)
	assert.Contains(t, buf.String(), `"err":"reregister failed"`)
}

func TestLoop_RunStopsOnSignal(t *testing.T) {
	loop := newTestLoop(t)

	sender, ch, err := NewChannel[int]()
	require.NoError(t, err)
	defer sender.Close()

	var got []int
	_, err = InsertSource(loop, ch, func(e ChannelEvent[int]) {
		if e.Closed {
			return
		}
		got = append(got, e.Msg)
		if e.Msg == 3 {
			loop.Signal().Stop()
		}
	})
	require.NoError(t, err)

	go func() {
		for i := 1; i <= 3; i++ {
			_ = sender.Send(i)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx, -1, nil))
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestLoop_RunStopsOnContext(t *testing.T) {
	loop := newTestLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	var idle int
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	assert.ErrorIs(t, loop.Run(ctx, -1, func() { idle++ }), context.Canceled)
	assert.GreaterOrEqual(t, idle, 1)
}

func TestLoop_Closed(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	timer := &failingSource{Timer: NewTimerFromDuration(time.Hour)}
	_, err = InsertSource[time.Time](loop, timer, func(time.Time) {})
	require.NoError(t, err)

	require.NoError(t, loop.Close())
	require.NoError(t, loop.Close())
	assert.True(t, timer.closed)

	assert.ErrorIs(t, loop.Dispatch(0), ErrLoopClosed)
	_, err = InsertSource(loop, NewTimerImmediate(), func(time.Time) {})
	assert.ErrorIs(t, err, ErrLoopClosed)
}

func TestInsertSource_NilPanics(t *testing.T) {
	loop := newTestLoop(t)
	assert.PanicsWithValue(t, `poll: nil callback`, func() {
		_, _ = InsertSource[time.Time](loop, NewTimerImmediate(), nil)
	})
}
