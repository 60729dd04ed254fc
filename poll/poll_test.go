//go:build linux || darwin

package poll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestPoll(t *testing.T, opts ...LoopOption) *Poll {
	t.Helper()
	p, err := NewPoll(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newTestPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestTimeoutMillis(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		in   time.Duration
		want int
	}{
		{`negative`, -1, -1},
		{`zero`, 0, 0},
		{`sub millisecond rounds up`, time.Microsecond, 1},
		{`exact`, 5 * time.Millisecond, 5},
		{`fraction rounds up`, 5*time.Millisecond + 1, 6},
		{`clamped`, 1 << 62, 1<<31 - 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, timeoutMillis(tc.in))
		})
	}
}

func TestPoll_RegisterReadable(t *testing.T) {
	p := newTestPoll(t)
	r, w := newTestPipe(t)

	token := NewTokenFactory(7).Token()
	require.NoError(t, p.Register(r, InterestRead, Level, token))

	events, err := p.poll(0)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = unix.Write(w, []byte{1})
	require.NoError(t, err)

	events, err = p.poll(time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, token, events[0].token)
	assert.True(t, events[0].readiness.Readable)

	require.NoError(t, p.Unregister(r))

	events, err = p.poll(0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPoll_RegistrationErrors(t *testing.T) {
	p := newTestPoll(t)
	r, _ := newTestPipe(t)

	token := NewTokenFactory(1).Token()
	assert.ErrorIs(t, p.Register(-1, InterestRead, Level, token), ErrFDOutOfRange)
	assert.ErrorIs(t, p.Reregister(r, InterestRead, Level, token), ErrNotRegistered)
	assert.ErrorIs(t, p.Unregister(r), ErrNotRegistered)

	require.NoError(t, p.Register(r, InterestRead, Level, token))
	assert.ErrorIs(t, p.Register(r, InterestRead, Level, token), ErrAlreadyRegistered)

	other := NewTokenFactory(2).Token()
	require.NoError(t, p.Reregister(r, InterestRead, Edge, other))
	require.NoError(t, p.Unregister(r))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Register(r, InterestRead, Level, token), ErrPollClosed)
	_, err := p.poll(0)
	assert.ErrorIs(t, err, ErrPollClosed)
}

func TestPoll_TimeoutsFireInDeadlineOrder(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := NewManualClock(start)
	p := newTestPoll(t, WithClock(clock))

	factory := NewTokenFactory(3)
	a, b, c := factory.Token(), factory.Token(), factory.Token()

	p.InsertTimeout(start.Add(20*time.Millisecond), b)
	p.InsertTimeout(start.Add(10*time.Millisecond), a)
	cancelled := p.InsertTimeout(start.Add(15*time.Millisecond), c)
	p.CancelTimeout(cancelled)

	events, err := p.poll(0)
	require.NoError(t, err)
	assert.Empty(t, events)

	clock.Advance(30 * time.Millisecond)
	events, err = p.poll(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, a, events[0].token)
	assert.Equal(t, b, events[1].token)
	assert.Equal(t, Readiness{}, events[0].readiness)

	// each timeout fires once
	events, err = p.poll(0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPoll_WaitBoundedByDeadline(t *testing.T) {
	p := newTestPoll(t)
	token := NewTokenFactory(1).Token()
	p.InsertTimeout(p.Now().Add(20*time.Millisecond), token)

	start := time.Now()
	var events []event
	for len(events) == 0 {
		var err error
		events, err = p.poll(-1)
		require.NoError(t, err)
		require.Less(t, time.Since(start), 5*time.Second)
	}

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, token, events[0].token)
}

func TestWithClock_Nil(t *testing.T) {
	_, err := NewPoll(WithClock(nil))
	assert.EqualError(t, err, `poll: nil clock`)
}
