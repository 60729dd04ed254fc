package keyrepeat

import (
	"fmt"
)

type (
	// KeyEvent is a single key occurrence. Only Time is interpreted, it is
	// advanced by the repeat delay and gap, and wraps on overflow.
	KeyEvent struct {
		// UTF8 is the text produced by the key, if any.
		UTF8 string
		// Time is a timestamp in milliseconds, in the input source's time base.
		Time uint32
		// RawCode is the hardware key code.
		RawCode uint32
		// Keysym is the interpreted symbol, zero if unknown.
		Keysym uint32
	}

	// RepeatInfo configures the repeat cadence, see [Repeat] and
	// [DisableRepeat].
	RepeatInfo struct {
		// Rate is the repeat rate, in thousandths of repeats per second, the
		// gap between repeats is Rate/1000 milliseconds, truncated.
		Rate uint32
		// Delay is the time, in milliseconds, before the first repeat.
		Delay uint32
		// Disabled stops repeating. Rate and Delay are ignored.
		Disabled bool
	}

	// RepeatMessage is a control message, accepted by [Source]. It is
	// implemented only by [StopRepeat], [StartRepeat] and [UpdateRepeatInfo].
	RepeatMessage interface {
		isRepeatMessage()
	}

	// StopRepeat stops repeating the current key, if any. The cadence is
	// retained.
	StopRepeat struct{}

	// StartRepeat starts repeating Event, replacing any current key. The
	// event's time is advanced by the delay, by the source.
	StartRepeat struct {
		Event KeyEvent
	}

	// UpdateRepeatInfo replaces the cadence, or disables repeating.
	UpdateRepeatInfo struct {
		Info RepeatInfo
	}
)

var (
	// compile time assertions

	_ RepeatMessage = StopRepeat{}
	_ RepeatMessage = StartRepeat{}
	_ RepeatMessage = UpdateRepeatInfo{}
)

// Repeat enables repeating, with the given rate and delay. It panics if
// rate is zero.
func Repeat(rate, delay uint32) RepeatInfo {
	if rate == 0 {
		panic("keyrepeat: zero rate")
	}
	return RepeatInfo{Rate: rate, Delay: delay}
}

// DisableRepeat disables repeating.
func DisableRepeat() RepeatInfo {
	return RepeatInfo{Disabled: true}
}

// Gap returns the time between repeats, in milliseconds.
func (x RepeatInfo) Gap() uint32 {
	return x.Rate / 1000
}

// String implements fmt.Stringer.
func (x RepeatInfo) String() string {
	if x.Disabled {
		return "disabled"
	}
	return fmt.Sprintf("rate=%d delay=%dms", x.Rate, x.Delay)
}

func (StopRepeat) isRepeatMessage()       {}
func (StartRepeat) isRepeatMessage()      {}
func (UpdateRepeatInfo) isRepeatMessage() {}
