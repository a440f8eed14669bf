// Package pin provides the pin table: an explicit extra-roots registry that keeps
// execution contexts reachable while their threads run.
//
// A script-visible thread handle can become unreachable long before the thread it
// spawned finishes. The pin table holds a reference to each running context,
// keyed by an opaque token, from the moment the thread is launched until the
// script function inside it returns:
//
//	token := pin.NewToken()
//	if err := pin.Roots().Pin(token, ctx); err != nil {
//	    return err
//	}
//	go func() {
//	    defer pin.Roots().Unpin(token)
//	    run(ctx)
//	}()
//
// # Roots
//
// Roots returns the process-wide table. It lives in a package variable, so the
// collector treats every entry as reachable regardless of what else refers to
// the pinned value. Tables created with NewTable are only roots for as long as
// their owner keeps them reachable.
//
// # Observers
//
// Register observers to track pin lifecycle events:
//
//	stop := table.Subscribe(pin.ObserverFunc(func(e pin.Event) {
//	    switch e.Type {
//	    case pin.EventPinned:
//	        log.Printf("context %d pinned", e.Token)
//	    case pin.EventUnpinned:
//	        log.Printf("context %d unpinned", e.Token)
//	    }
//	}))
//	defer stop()
//
// # Draining
//
// Wait blocks until the table is empty, which is how a host lets detached
// threads finish before the process exits.
package pin
