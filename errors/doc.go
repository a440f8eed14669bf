// Package errors provides structured error types for the luathread library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the Lua type involved, the offending value, a detail
// message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSpawn, errors.KindInvalidArgument).
//		Arg(1).
//		LuaType("number").
//		Detail("function expected").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidArgument(errors.PhaseSpawn, 1, "function", "number")
//	err := errors.DoubleJoin(id, "joined")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
