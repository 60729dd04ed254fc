// Package keyrepeat synthesizes key repeat events, for input protocols that
// report key presses and releases but leave repeating to the client.
//
// A [Source] is a [poll.EventSource] combining a control [poll.Channel] with
// a [poll.Timer]. The goroutine decoding input sends [RepeatMessage] values
// (directly, or via a [Keyboard]), and the source emits a copy of the held
// [KeyEvent], with its timestamp advanced, each time the repeat cadence
// elapses. Closing the sender removes the source from its loop.
//
// Every dispatch drains all pending control messages before the timer is
// considered, so a key released in the same wake-up as its repeat deadline
// never produces a repeat.
package keyrepeat
