package pin

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrZeroToken     = errors.New("pin: token 0 is reserved")
	ErrAlreadyPinned = errors.New("pin: token already pinned")
)

// roots is the well-known table. Being a package variable it is always
// reachable, so every entry it holds is too.
var roots = NewTable()

// Roots returns the process-wide pin table.
func Roots() *Table {
	return roots
}

// Table maps tokens to pinned values.
type Table struct {
	entries   map[Token]Entry
	idle      chan struct{} // closed while the table is empty
	observers map[int]Observer
	nextObs   int
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	idle := make(chan struct{})
	close(idle)
	return &Table{
		entries:   make(map[Token]Entry),
		idle:      idle,
		observers: make(map[int]Observer),
	}
}

// Pin stores v under token. The value stays reachable until Unpin(token).
func (t *Table) Pin(token Token, v any) error {
	if token == 0 {
		return ErrZeroToken
	}

	t.mu.Lock()
	if _, ok := t.entries[token]; ok {
		t.mu.Unlock()
		return ErrAlreadyPinned
	}
	if len(t.entries) == 0 {
		t.idle = make(chan struct{})
	}
	t.entries[token] = Entry{Token: token, Value: v, PinnedAt: time.Now()}
	n := len(t.entries)
	t.mu.Unlock()

	t.notify(Event{Type: EventPinned, Token: token, Value: v, Len: n})
	return nil
}

// Unpin releases the value pinned under token and returns it.
func (t *Table) Unpin(token Token) (any, bool) {
	t.mu.Lock()
	e, ok := t.entries[token]
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	delete(t.entries, token)
	n := len(t.entries)
	if n == 0 {
		close(t.idle)
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventUnpinned, Token: token, Value: e.Value, Len: n})
	return e.Value, true
}

// Get retrieves a pinned value by token.
func (t *Table) Get(token Token) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[token]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Len returns the number of pinned values.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Each calls fn for every entry until fn returns false.
// fn runs on a snapshot, so it may call back into the table.
func (t *Table) Each(fn func(Entry) bool) {
	t.mu.RLock()
	snapshot := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		snapshot = append(snapshot, e)
	}
	t.mu.RUnlock()

	for _, e := range snapshot {
		if !fn(e) {
			return
		}
	}
}

// Wait blocks until the table is empty or ctx is done.
func (t *Table) Wait(ctx context.Context) error {
	for {
		t.mu.RLock()
		idle := t.idle
		t.mu.RUnlock()

		select {
		case <-idle:
			if t.Len() == 0 {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe adds an observer for lifecycle events and returns a function that removes it.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.obsMu.Lock()
	id := t.nextObs
	t.nextObs++
	t.observers[id] = o
	t.obsMu.Unlock()

	return func() {
		t.obsMu.Lock()
		delete(t.observers, id)
		t.obsMu.Unlock()
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnPinEvent(e)
	}
}
