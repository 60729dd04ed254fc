package poll

import (
	"fmt"
)

// Token identifies a single registration (a file descriptor or a timer) of
// an event source. Tokens are comparable.
type Token struct {
	key uint32
	sub uint32
}

// String implements fmt.Stringer.
func (x Token) String() string {
	return fmt.Sprintf("%d.%d", x.key, x.sub)
}

// TokenFactory mints tokens for a single event source. A fresh factory is
// provided for every Register and Reregister call, so tokens minted in the
// same order are stable across re-registration.
type TokenFactory struct {
	key  uint32
	next uint32
}

// NewTokenFactory returns a factory minting tokens for the given source key.
// Loops create factories internally, this is exposed for driving sources
// directly against a [Poll].
func NewTokenFactory(key uint32) *TokenFactory {
	return &TokenFactory{key: key}
}

// Token returns a new, unique token.
func (x *TokenFactory) Token() Token {
	t := Token{key: x.key, sub: x.next}
	x.next++
	return t
}

// Readiness reports which conditions triggered an event. Timer expiries are
// delivered with the zero value.
type Readiness struct {
	Readable bool
	Writable bool
	Error    bool
}

// Interest selects the readiness conditions to monitor.
type Interest struct {
	Readable bool
	Writable bool
}

var (
	// InterestRead monitors readability.
	InterestRead = Interest{Readable: true}
	// InterestWrite monitors writability.
	InterestWrite = Interest{Writable: true}
	// InterestBoth monitors both.
	InterestBoth = Interest{Readable: true, Writable: true}
)

// Mode selects the triggering behavior of a registration.
type Mode uint8

const (
	// Level reports readiness for as long as the condition holds.
	Level Mode = iota
	// Edge reports readiness only when the condition changes.
	Edge
)

// PostAction instructs the loop what to do with a source, after it has
// processed its events.
type PostAction uint8

const (
	// PostActionContinue keeps the source registered as-is.
	PostActionContinue PostAction = iota
	// PostActionReregister re-registers the source, with fresh tokens.
	PostActionReregister
	// PostActionDisable unregisters the source, but keeps it in the loop.
	PostActionDisable
	// PostActionRemove unregisters the source and drops it from the loop.
	PostActionRemove
)

// String implements fmt.Stringer.
func (x PostAction) String() string {
	switch x {
	case PostActionContinue:
		return "continue"
	case PostActionReregister:
		return "reregister"
	case PostActionDisable:
		return "disable"
	case PostActionRemove:
		return "remove"
	default:
		return fmt.Sprintf("PostAction(%d)", uint8(x))
	}
}

// EventSource is implemented by everything a [Loop] can poll.
//
// Register, Reregister and Unregister are called by the loop to manage the
// source's interest set, ProcessEvents is called whenever one of the tokens
// minted during registration is reported ready. Composite sources delegate
// to each inner source, in turn, passing the same arguments.
type EventSource[E any] interface {
	ProcessEvents(readiness Readiness, token Token, callback func(E)) (PostAction, error)
	Register(poll *Poll, factory *TokenFactory) error
	Reregister(poll *Poll, factory *TokenFactory) error
	Unregister(poll *Poll) error
}
