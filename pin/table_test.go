package pin

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *testObserver) OnPinEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()
	token := NewToken()

	if err := table.Pin(token, "ctx"); err != nil {
		t.Fatalf("Pin: %v", err)
	}

	val, ok := table.Get(token)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "ctx" {
		t.Fatalf("Expected 'ctx', got %v", val)
	}
	if table.Len() != 1 {
		t.Fatalf("Expected Len() == 1, got %d", table.Len())
	}

	val, ok = table.Unpin(token)
	if !ok {
		t.Fatal("Unpin failed")
	}
	if val != "ctx" {
		t.Fatalf("Expected 'ctx', got %v", val)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Unpin")
	}

	if _, ok := table.Unpin(token); ok {
		t.Fatal("second Unpin should fail")
	}
}

func TestTable_PinErrors(t *testing.T) {
	table := NewTable()

	if err := table.Pin(0, "x"); !errors.Is(err, ErrZeroToken) {
		t.Fatalf("Pin(0): got %v, want ErrZeroToken", err)
	}

	token := NewToken()
	if err := table.Pin(token, "x"); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if err := table.Pin(token, "y"); !errors.Is(err, ErrAlreadyPinned) {
		t.Fatalf("second Pin: got %v, want ErrAlreadyPinned", err)
	}
	if val, _ := table.Get(token); val != "x" {
		t.Fatalf("value replaced by failed Pin: %v", val)
	}
}

func TestNewToken_Unique(t *testing.T) {
	seen := make(map[Token]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tok := NewToken()
				mu.Lock()
				seen[tok] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 800 {
		t.Fatalf("expected 800 unique tokens, got %d", len(seen))
	}
	if seen[0] {
		t.Fatal("token 0 handed out")
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	unsubscribe := table.Subscribe(obs)

	token := NewToken()
	table.Pin(token, "ctx")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventPinned || obs.events[0].Token != token || obs.events[0].Len != 1 {
		t.Fatalf("unexpected pin event %+v", obs.events[0])
	}

	table.Unpin(token)
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[1].Type != EventUnpinned || obs.events[1].Len != 0 {
		t.Fatalf("unexpected unpin event %+v", obs.events[1])
	}

	unsubscribe()
	table.Pin(NewToken(), "other")
	if len(obs.events) != 2 {
		t.Fatalf("event delivered after unsubscribe: %d", len(obs.events))
	}
}

func TestTable_ObserverFunc(t *testing.T) {
	table := NewTable()
	var pinned atomic.Int32
	table.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventPinned {
			pinned.Add(1)
		}
	}))

	table.Pin(NewToken(), 1)
	table.Pin(NewToken(), 2)

	if got := pinned.Load(); got != 2 {
		t.Fatalf("pinned events: got %d, want 2", got)
	}
}

func TestTable_Each(t *testing.T) {
	table := NewTable()
	want := map[Token]string{}
	for _, v := range []string{"a", "b", "c"} {
		tok := NewToken()
		want[tok] = v
		table.Pin(tok, v)
	}

	got := map[Token]string{}
	table.Each(func(e Entry) bool {
		got[e.Token] = e.Value.(string)
		if e.PinnedAt.IsZero() {
			t.Errorf("entry %d has zero PinnedAt", e.Token)
		}
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("Each visited %d entries, want %d", len(got), len(want))
	}
	for tok, v := range want {
		if got[tok] != v {
			t.Errorf("token %d: got %q, want %q", tok, got[tok], v)
		}
	}

	visited := 0
	table.Each(func(e Entry) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("Each did not stop early: visited %d", visited)
	}
}

func TestTable_EachMayUnpin(t *testing.T) {
	table := NewTable()
	for i := 0; i < 4; i++ {
		table.Pin(NewToken(), i)
	}

	table.Each(func(e Entry) bool {
		table.Unpin(e.Token)
		return true
	})

	if table.Len() != 0 {
		t.Fatalf("Len after unpinning inside Each: %d", table.Len())
	}
}

func TestTable_WaitEmpty(t *testing.T) {
	table := NewTable()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := table.Wait(ctx); err != nil {
		t.Fatalf("Wait on empty table: %v", err)
	}
}

func TestTable_WaitDrains(t *testing.T) {
	table := NewTable()
	tokens := []Token{NewToken(), NewToken()}
	for _, tok := range tokens {
		table.Pin(tok, "ctx")
	}

	go func() {
		for _, tok := range tokens {
			time.Sleep(10 * time.Millisecond)
			table.Unpin(tok)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := table.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("Wait returned with %d entries", table.Len())
	}
}

func TestTable_WaitTimeout(t *testing.T) {
	table := NewTable()
	table.Pin(NewToken(), "stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := table.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait: got %v, want DeadlineExceeded", err)
	}
}

// TestTable_KeepsValueReachable tests that a pinned value survives collection
// Given: a value whose only reference is the pin table
// When: the collector runs
// Then: the value is not reclaimed until it is unpinned
func TestTable_KeepsValueReachable(t *testing.T) {
	type payload struct{ buf [64]byte }

	table := NewTable()
	token := NewToken()
	var collected atomic.Bool

	func() {
		p := &payload{}
		runtime.AddCleanup(p, func(flag *atomic.Bool) { flag.Store(true) }, &collected)
		table.Pin(token, p)
	}()

	for i := 0; i < 5; i++ {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	if collected.Load() {
		t.Fatal("pinned value collected: got = true, want = false")
	}

	table.Unpin(token)
	for i := 0; i < 20 && !collected.Load(); i++ {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	if !collected.Load() {
		t.Fatal("unpinned value collected: got = false, want = true")
	}
	runtime.KeepAlive(table)
}
