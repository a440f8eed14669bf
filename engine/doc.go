// Package engine provides isolated execution contexts for gopher-lua.
//
// A Context owns a fresh interpreter state with its own stack and globals. A
// script function and its positional arguments are moved into it once, then run
// to completion on whichever goroutine calls Run.
//
// # Lifecycle
//
//  1. NewContext() creates the state and assigns it a pin token
//  2. Context.Transfer() moves the callable and arguments from the parent state
//  3. Context.Run() calls them under PCall and reports script errors
//  4. Context.Close() releases the state
//
// # Transfer Rules
//
// Interpreter states are not safe for concurrent use, so nothing reachable
// from the parent may be touched by the context after Transfer returns:
//
//	Value            Moved as
//	─────────────────────────────────────────────
//	nil, boolean     copied
//	number, string   copied
//	table            rebuilt, identity kept within one transfer
//	function         rebound to the context's globals, upvalues moved
//	channel          shared (Go channel)
//	userdata         Options.MoveUserData, otherwise shared
//	thread           rejected
//
// Tables and upvalues reached more than once during a transfer map to a single
// copy, so cycles and closures sharing an upvalue keep their shape.
//
// # Errors
//
// Run returns an *errors.Error of kind KindScriptError when the function raises.
// Error.Textual reports whether the raised value was a string. Go panics from
// host functions are caught by PCall and surface the same way.
package engine
