//go:build linux || darwin

package poll

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dispatchChannel polls p once, feeding every event to ch.
func dispatchChannel[T any](t *testing.T, p *Poll, ch *Channel[T], out *[]ChannelEvent[T]) PostAction {
	t.Helper()
	events, err := p.poll(0)
	require.NoError(t, err)
	action := PostActionContinue
	for _, ev := range events {
		a, err := ch.ProcessEvents(ev.readiness, ev.token, func(e ChannelEvent[T]) { *out = append(*out, e) })
		require.NoError(t, err)
		if a != PostActionContinue {
			action = a
		}
	}
	return action
}

func TestChannel_FIFOThenClosed(t *testing.T) {
	p := newTestPoll(t)
	sender, ch, err := NewChannel[int]()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.Register(p, NewTokenFactory(1)))

	for i := 0; i < 100; i++ {
		require.NoError(t, sender.Send(i))
	}
	assert.Equal(t, 100, ch.Pending())
	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())
	assert.ErrorIs(t, sender.Send(100), ErrSenderClosed)

	var got []ChannelEvent[int]
	assert.Equal(t, PostActionRemove, dispatchChannel(t, p, ch, &got))

	require.Len(t, got, 101)
	for i := 0; i < 100; i++ {
		assert.Equal(t, ChannelEvent[int]{Msg: i}, got[i])
	}
	assert.Equal(t, ChannelEvent[int]{Closed: true}, got[100])

	// the closed signal is delivered once
	got = got[:0]
	action, err := ch.ProcessEvents(Readiness{}, Token{}, func(e ChannelEvent[int]) { got = append(got, e) })
	require.NoError(t, err)
	assert.Equal(t, PostActionRemove, action)
	assert.Empty(t, got)
}

func TestChannel_DrainsOnForeignToken(t *testing.T) {
	p := newTestPoll(t)
	sender, ch, err := NewChannel[string]()
	require.NoError(t, err)
	defer ch.Close()
	defer sender.Close()
	require.NoError(t, ch.Register(p, NewTokenFactory(1)))

	require.NoError(t, sender.Send(`a`))

	var got []string
	action, err := ch.ProcessEvents(Readiness{}, NewTokenFactory(9).Token(), func(e ChannelEvent[string]) {
		got = append(got, e.Msg)
	})
	require.NoError(t, err)
	assert.Equal(t, PostActionContinue, action)
	assert.Equal(t, []string{`a`}, got)
}

func TestChannel_ClonesKeepItOpen(t *testing.T) {
	p := newTestPoll(t)
	sender, ch, err := NewChannel[int]()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.Register(p, NewTokenFactory(1)))

	clone, err := sender.Clone()
	require.NoError(t, err)
	require.NoError(t, sender.Close())
	_, err = sender.Clone()
	assert.ErrorIs(t, err, ErrSenderClosed)

	require.NoError(t, clone.Send(1))

	var got []ChannelEvent[int]
	assert.Equal(t, PostActionContinue, dispatchChannel(t, p, ch, &got))
	assert.Equal(t, []ChannelEvent[int]{{Msg: 1}}, got)

	require.NoError(t, clone.Close())
	got = got[:0]
	assert.Equal(t, PostActionRemove, dispatchChannel(t, p, ch, &got))
	assert.Equal(t, []ChannelEvent[int]{{Closed: true}}, got)
}

func TestChannel_ConcurrentSenders(t *testing.T) {
	p := newTestPoll(t)
	sender, ch, err := NewChannel[int]()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.Register(p, NewTokenFactory(1)))

	const senders, perSender = 4, 250
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		clone, err := sender.Clone()
		require.NoError(t, err)
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			defer clone.Close()
			for j := 0; j < perSender; j++ {
				if err := clone.Send(base + j); err != nil {
					t.Error(err)
					return
				}
			}
		}(i * perSender)
	}
	require.NoError(t, sender.Close())
	wg.Wait()

	var got []ChannelEvent[int]
	assert.Equal(t, PostActionRemove, dispatchChannel(t, p, ch, &got))
	require.Len(t, got, senders*perSender+1)

	// per-sender order is preserved
	last := make(map[int]int)
	for _, e := range got[:len(got)-1] {
		base := e.Msg / perSender
		if prev, ok := last[base]; ok {
			assert.Greater(t, e.Msg, prev)
		}
		last[base] = e.Msg
	}
	assert.True(t, got[len(got)-1].Closed)
}

func TestChannel_SendAfterReceiverClosed(t *testing.T) {
	sender, ch, err := NewChannel[int]()
	require.NoError(t, err)
	require.NoError(t, sender.Send(1))
	require.NoError(t, ch.Close())
	assert.Equal(t, 0, ch.Pending())
	assert.ErrorIs(t, sender.Send(2), ErrChannelClosed)
	assert.NoError(t, sender.Close())
}
