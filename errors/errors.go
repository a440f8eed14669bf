package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in a thread's lifecycle the error occurred
type Phase string

const (
	PhaseSpawn    Phase = "spawn"    // handle and context creation
	PhaseTransfer Phase = "transfer" // moving values into a context
	PhaseRuntime  Phase = "runtime"  // script execution on the thread
	PhaseJoin     Phase = "join"     // waiting on a thread
	PhasePin      Phase = "pin"      // pin table bookkeeping
	PhaseConfig   Phase = "config"   // configuration validation
	PhaseLoad     Phase = "load"     // script and config loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindDoubleJoin      Kind = "double_join"
	KindScriptError     Kind = "script_error"
	KindUnsupported     Kind = "unsupported"
	KindInvalidInput    Kind = "invalid_input"
	KindInvalidData     Kind = "invalid_data"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	LuaType string
	Detail  string
	Arg     int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Arg > 0 {
		fmt.Fprintf(&b, " at argument #%d", e.Arg)
	}

	if e.LuaType != "" {
		b.WriteString(": got ")
		b.WriteString(e.LuaType)
	}

	if e.Detail != "" {
		if e.LuaType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err (or anything it wraps) is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Arg sets the 1-based positional argument the error refers to
func (b *Builder) Arg(n int) *Builder {
	b.err.Arg = n
	return b
}

// LuaType sets the Lua type name of the offending value
func (b *Builder) LuaType(t string) *Builder {
	b.err.LuaType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidArgument creates an error for a positional argument of the wrong type
func InvalidArgument(phase Phase, arg int, want, got string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindInvalidArgument,
		Arg:     arg,
		LuaType: got,
		Detail:  want + " expected",
	}
}

// DoubleJoin creates the error returned when joining a handle that is not running
func DoubleJoin(id uint64, status string) *Error {
	return &Error{
		Phase:  PhaseJoin,
		Kind:   KindDoubleJoin,
		Value:  id,
		Detail: fmt.Sprintf("cannot join a non-running handle (thread %d is %s)", id, status),
	}
}

// ScriptError creates an error for a script function that raised an error.
// luaType is the type name of the raised value.
func ScriptError(msg, luaType string, cause error) *Error {
	return &Error{
		Phase:   PhaseRuntime,
		Kind:    KindScriptError,
		LuaType: luaType,
		Detail:  msg,
		Cause:   cause,
	}
}

// Textual reports whether a script error was raised with a string value
func (e *Error) Textual() bool {
	return e.Kind == KindScriptError && e.LuaType == "string"
}

// Unsupported creates an error for a value of the given Lua type that the
// operation cannot handle
func Unsupported(phase Phase, luaType, detail string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindUnsupported,
		LuaType: luaType,
		Detail:  detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a script or config loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
