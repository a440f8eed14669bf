package pin

import (
	"sync/atomic"
	"time"
)

// Token is an opaque identifier bound to one execution context.
// Token 0 is reserved and always invalid.
type Token uint64

var lastToken atomic.Uint64

// NewToken returns a token that has never been handed out before in this process.
func NewToken() Token {
	return Token(lastToken.Add(1))
}

// EventType identifies a pin lifecycle notification.
type EventType uint8

const (
	EventPinned EventType = iota
	EventUnpinned
)

func (t EventType) String() string {
	switch t {
	case EventPinned:
		return "pinned"
	case EventUnpinned:
		return "unpinned"
	default:
		return "unknown"
	}
}

// Event represents a pin lifecycle event.
// Len is the number of entries in the table right after the change.
type Event struct {
	Value any
	Token Token
	Len   int
	Type  EventType
}

// Observer receives notifications about pin lifecycle events.
// Observers are called synchronously and must not call back into the table.
type Observer interface {
	OnPinEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnPinEvent calls f(e).
func (f ObserverFunc) OnPinEvent(e Event) {
	f(e)
}

// Entry describes one pinned value.
type Entry struct {
	Value    any
	PinnedAt time.Time
	Token    Token
}
