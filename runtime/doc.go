// Package runtime lets gopher-lua scripts run functions on their own threads.
//
// # Quick Start
//
//	rt := runtime.New(runtime.Config{Logger: logger})
//
//	L := lua.NewState()
//	defer L.Close()
//	rt.Open(L)
//
//	err := L.DoString(`
//	    local h = thread.run(function(n) print(n * 2) end, 21)
//	    h:join()
//	`)
//
// # Script Module
//
// Open registers a global module (named "thread" unless Config.ModuleName
// says otherwise); Preload makes it available to require() instead:
//
//	run(fn, ...)     start fn(...) on a new thread, returns a handle
//	join(h)          wait for the thread, once; h:join() works too
//	status(h)        "running", "joining", "joined" or "detached"
//	sleep(seconds)   block the calling thread
//	w(...)           print the type of every argument
//
// # Handles
//
// Every run returns a handle that ends in exactly one of two ways:
//
//	running ──join──▶ joining ──▶ joined
//	   │
//	   └──handle collected──▶ detached
//
// A detached thread keeps running to completion; nothing waits for it.
// Joining a handle that is not running raises an error. The function's
// context is pinned in a pin.Table for as long as it runs, so collecting the
// handle never collects the running state. Runtime.Wait blocks until every
// pinned context is gone.
//
// # Errors
//
// An error raised by the thread function is not propagated to join. When the
// error value is a string, "Error: <message>" is written to
// Config.Diagnostics; every failure is logged and counted in Stats.
package runtime
