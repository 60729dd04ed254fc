//go:build linux

package main

import (
	"errors"
	"fmt"
	"slices"

	evdev "github.com/holoplot/go-evdev"
	keyrepeat "github.com/joeycumines/go-keyrepeat"
)

// evdevInput reads a keyboard via evdev.
type evdevInput struct {
	dev  *evdev.InputDevice
	path string
}

// key event values reported by evdev
const (
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

var modifiers = [...]evdev.EvCode{
	evdev.KEY_LEFTCTRL,
	evdev.KEY_RIGHTCTRL,
	evdev.KEY_LEFTSHIFT,
	evdev.KEY_RIGHTSHIFT,
	evdev.KEY_LEFTALT,
	evdev.KEY_RIGHTALT,
	evdev.KEY_LEFTMETA,
	evdev.KEY_RIGHTMETA,
	evdev.KEY_CAPSLOCK,
}

// openInput opens the device at path, or the first keyboard found, if path
// is empty.
func openInput(path string, grab bool) (keyInput, error) {
	var (
		dev *evdev.InputDevice
		err error
	)
	if path != "" {
		dev, err = evdev.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if !isKeyboard(dev) {
			_ = dev.Close()
			return nil, fmt.Errorf("%s is not a keyboard", path)
		}
	} else {
		dev, path, err = findKeyboard()
		if err != nil {
			return nil, err
		}
	}

	if grab {
		if err := dev.Grab(); err != nil {
			_ = dev.Close()
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
	}

	return &evdevInput{dev: dev, path: path}, nil
}

// findKeyboard returns the first device with both KEY_A and KEY_ENTER.
func findKeyboard() (*evdev.InputDevice, string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, "", fmt.Errorf("list input devices: %w", err)
	}

	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			continue
		}
		if isKeyboard(dev) {
			return dev, p.Path, nil
		}
		_ = dev.Close()
	}

	return nil, "", errors.New("no keyboard found, try --device (reading /dev/input usually requires the input group)")
}

func isKeyboard(dev *evdev.InputDevice) bool {
	codes := dev.CapableEvents(evdev.EV_KEY)
	return slices.Contains(codes, evdev.KEY_A) && slices.Contains(codes, evdev.KEY_ENTER)
}

func (x *evdevInput) Path() string { return x.path }

func (x *evdevInput) Close() error { return x.dev.Close() }

func (x *evdevInput) Forward(handler keyHandler) error {
	for {
		ev, err := x.dev.ReadOne()
		if err != nil {
			return err
		}
		if err := forwardEvent(handler, ev); err != nil {
			return err
		}
	}
}

// forwardEvent passes presses and releases to handler. Repeats generated by
// the kernel, and other event types, are dropped.
func forwardEvent(handler keyHandler, ev *evdev.InputEvent) error {
	if ev.Type != evdev.EV_KEY {
		return nil
	}
	event := keyrepeat.KeyEvent{
		Time:    uint32(int64(ev.Time.Sec)*1000 + int64(ev.Time.Usec)/1000),
		RawCode: uint32(ev.Code),
	}
	switch ev.Value {
	case keyPress:
		return handler.Press(event)
	case keyRelease:
		return handler.Release(event)
	case keyRepeat:
		// synthesized instead
		return nil
	default:
		return nil
	}
}

// repeats excludes modifier keys from repeating.
func repeats(rawCode uint32) bool {
	return !slices.Contains(modifiers[:], evdev.EvCode(rawCode))
}
