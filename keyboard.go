package keyrepeat

import (
	"sync"

	"github.com/joeycumines/go-keyrepeat/poll"
	"github.com/joeycumines/logiface"
)

// Keyboard translates key presses and releases into the [RepeatMessage]
// values controlling a [Source]. It is intended for the goroutine decoding
// input, and is safe for concurrent use.
//
// Like the [Source], a Keyboard starts with repeating disabled, and ignores
// presses until [Keyboard.SetRepeatInfo] enables it. Cadence updates sent by
// other clones of the sender are not observed.
type Keyboard struct {
	sender    *poll.Sender[RepeatMessage]
	logger    *logiface.Logger[logiface.Event]
	repeats   func(rawCode uint32) bool
	mu        sync.Mutex
	current   uint32
	repeating bool
	enabled   bool
}

// NewKeyboard wraps sender, which the Keyboard takes ownership of. See also
// [WithRepeatsFunc].
func NewKeyboard(sender *poll.Sender[RepeatMessage], opts ...Option) (*Keyboard, error) {
	if sender == nil {
		panic("keyrepeat: nil sender")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Keyboard{
		sender:  sender,
		logger:  cfg.logger,
		repeats: cfg.repeats,
	}, nil
}

// Press starts repeating event, if its key repeats and repeating is enabled,
// replacing any key currently repeating.
func (x *Keyboard) Press(event KeyEvent) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.enabled || !x.repeats(event.RawCode) {
		return nil
	}

	if err := x.sender.Send(StartRepeat{Event: event}); err != nil {
		return err
	}
	x.current = event.RawCode
	x.repeating = true
	return nil
}

// Release stops repeating, if event is for the key currently repeating.
func (x *Keyboard) Release(event KeyEvent) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.repeating || x.current != event.RawCode {
		return nil
	}
	return x.stopLocked()
}

// Leave stops any repeat, e.g. when keyboard focus is lost.
func (x *Keyboard) Leave() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.repeating {
		return nil
	}
	return x.stopLocked()
}

// SetRepeatInfo forwards a cadence update. Disabling also forgets the key
// currently repeating.
func (x *Keyboard) SetRepeatInfo(info RepeatInfo) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.sender.Send(UpdateRepeatInfo{Info: info}); err != nil {
		return err
	}
	x.enabled = !info.Disabled
	if info.Disabled {
		x.repeating = false
	}
	x.logger.Debug().
		Str(`info`, info.String()).
		Log(`keyrepeat: repeat info`)
	return nil
}

// Repeating returns the raw code of the key currently repeating, if any.
func (x *Keyboard) Repeating() (uint32, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.current, x.repeating
}

// Close closes the sender, which removes the [Source] from its loop, once
// any pending messages are delivered. It is idempotent.
func (x *Keyboard) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.repeating = false
	return x.sender.Close()
}

func (x *Keyboard) stopLocked() error {
	if err := x.sender.Send(StopRepeat{}); err != nil {
		return err
	}
	x.repeating = false
	return nil
}
