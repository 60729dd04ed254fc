//go:build linux

package main

import (
	"syscall"
	"testing"

	evdev "github.com/holoplot/go-evdev"
	keyrepeat "github.com/joeycumines/go-keyrepeat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	pressed  []keyrepeat.KeyEvent
	released []keyrepeat.KeyEvent
}

func (x *recordingHandler) Press(event keyrepeat.KeyEvent) error {
	x.pressed = append(x.pressed, event)
	return nil
}

func (x *recordingHandler) Release(event keyrepeat.KeyEvent) error {
	x.released = append(x.released, event)
	return nil
}

func TestForwardEvent(t *testing.T) {
	var h recordingHandler
	tv := syscall.Timeval{Sec: 12, Usec: 345678}

	for _, ev := range []*evdev.InputEvent{
		{Time: tv, Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: keyPress},
		{Time: tv, Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: keyRepeat},
		{Time: tv, Type: evdev.EV_SYN},
		{Time: tv, Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: keyRelease},
	} {
		require.NoError(t, forwardEvent(&h, ev))
	}

	want := keyrepeat.KeyEvent{Time: 12345, RawCode: uint32(evdev.KEY_A)}
	assert.Equal(t, []keyrepeat.KeyEvent{want}, h.pressed)
	assert.Equal(t, []keyrepeat.KeyEvent{want}, h.released)
}

func TestRepeats(t *testing.T) {
	assert.True(t, repeats(uint32(evdev.KEY_A)))
	assert.True(t, repeats(uint32(evdev.KEY_ENTER)))
	assert.False(t, repeats(uint32(evdev.KEY_LEFTSHIFT)))
	assert.False(t, repeats(uint32(evdev.KEY_RIGHTCTRL)))
}
