// Package luathread runs gopher-lua script functions on native threads.
//
// Scripts start a thread with thread.run(fn, ...) and wait for it with
// thread.join(h). Every thread runs in an isolated interpreter state; the
// function and its arguments are moved into that state before the thread
// starts. A handle that becomes unreachable while its thread still runs is
// detached by the garbage collector instead of being joined, and the running
// state stays pinned until the function returns.
//
// # Architecture Overview
//
//	luathread/              Root package with the state helper
//	├── runtime/            Spawn, Join, handle finalization, script module
//	├── engine/             Isolated execution contexts and value transfer
//	├── pin/                Pin table keeping running contexts reachable
//	├── metrics/prometheus/ Prometheus exporter for thread lifecycle events
//	├── config/             YAML configuration and logger construction
//	├── errors/             Structured error types
//	└── cmd/luathread/      run, repl and top commands
//
// # Quick Start
//
//	rt := runtime.New(runtime.Config{})
//	L := luathread.NewState(rt, lua.Options{})
//	defer L.Close()
//
//	err := L.DoString(`
//	    local h = thread.run(function(a, b) print(a + b) end, 1, 2)
//	    h:join()
//	`)
//
// # Lifetimes
//
// A thread ends its handle's life in exactly one way: joined by a script, or
// detached when the handle is collected first. Runtime.Wait blocks until
// every thread, detached ones included, has finished, which lets a host exit
// only once all native threads have completed.
package luathread
