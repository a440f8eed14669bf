package engine

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luathread/errors"
	"github.com/wippyai/luathread/pin"
)

// Context is an isolated interpreter state that runs a single script function.
//
// It shares no stack with the state that created it. The function and its
// arguments are moved in once with Transfer; Run then calls them on whatever
// goroutine invokes it. A Context is not safe for concurrent use.
type Context struct {
	state *lua.LState
	fn    *lua.LFunction
	args  []lua.LValue
	opts  Options
	token pin.Token
	moved bool
}

// NewContext creates an isolated context. parent may be nil; when set, its
// stack sizing is inherited for fields left zero in opts.
func NewContext(parent *lua.LState, opts Options) *Context {
	L := lua.NewState(opts.luaOptions(parent))
	if opts.Setup != nil {
		opts.Setup(L)
	}

	c := &Context{
		state: L,
		opts:  opts,
		token: pin.NewToken(),
	}
	Logger().Debug("context created", zap.Uint64("token", uint64(c.token)))
	return c
}

// Token returns the identifier the context is pinned under.
func (c *Context) Token() pin.Token {
	return c.token
}

// State returns the context's interpreter state.
func (c *Context) State() *lua.LState {
	return c.state
}

// Transfer moves fn and args from parent into the context. It can be called once.
// On failure the context holds nothing and should be closed.
func (c *Context) Transfer(parent *lua.LState, fn *lua.LFunction, args []lua.LValue) error {
	if c.moved {
		return errors.InvalidInput(errors.PhaseTransfer, "context already holds a function")
	}
	if fn == nil {
		return errors.InvalidArgument(errors.PhaseTransfer, 1, "function", "nil")
	}

	m := newMover(parent, c.state, c.opts.MoveUserData)
	mfn, err := m.moveFunction(fn)
	if err != nil {
		return withArg(err, 1)
	}

	margs := make([]lua.LValue, len(args))
	for i, a := range args {
		mv, err := m.move(a)
		if err != nil {
			return withArg(err, i+2)
		}
		margs[i] = mv
	}

	c.fn = mfn
	c.args = margs
	c.moved = true
	return nil
}

// Run calls the transferred function with its arguments and blocks until it
// returns. Return values are discarded. A script-level error is returned as an
// *errors.Error of kind KindScriptError; Go panics inside the call are caught
// and reported the same way.
func (c *Context) Run() error {
	if c.fn == nil {
		return errors.InvalidInput(errors.PhaseRuntime, "context has no function to run")
	}

	L := c.state
	L.Push(c.fn)
	for _, a := range c.args {
		L.Push(a)
	}
	nargs := len(c.args)

	// From here on the context only holds what the script creates.
	c.fn = nil
	c.args = nil

	if err := L.PCall(nargs, 0, nil); err != nil {
		return scriptError(err)
	}
	return nil
}

// Close releases the interpreter state.
func (c *Context) Close() {
	c.fn = nil
	c.args = nil
	c.state.Close()
	Logger().Debug("context closed", zap.Uint64("token", uint64(c.token)))
}

func scriptError(err error) *errors.Error {
	if apiErr, ok := err.(*lua.ApiError); ok && apiErr.Object != nil {
		return errors.ScriptError(apiErr.Object.String(), apiErr.Object.Type().String(), err)
	}
	return errors.ScriptError(err.Error(), "", err)
}

func withArg(err error, arg int) error {
	if e, ok := err.(*errors.Error); ok && e.Arg == 0 {
		e.Arg = arg
	}
	return err
}
