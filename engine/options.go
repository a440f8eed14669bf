package engine

import lua "github.com/yuin/gopher-lua"

// Options configures the interpreter state of a new Context.
// Zero numeric fields inherit the parent state's settings.
type Options struct {
	// Setup runs on the fresh state before any value is transferred into it.
	// The runtime uses it to open its own module inside every context.
	Setup func(L *lua.LState)

	// MoveUserData lets the host rebuild its own userdata inside the target
	// state. Returning false shares the userdata as a host object.
	MoveUserData func(dst *lua.LState, ud *lua.LUserData) (lua.LValue, bool)

	CallStackSize       int
	RegistrySize        int
	SkipOpenLibs        bool
	IncludeGoStackTrace bool
}

func (o Options) luaOptions(parent *lua.LState) lua.Options {
	opts := lua.Options{
		CallStackSize:       o.CallStackSize,
		RegistrySize:        o.RegistrySize,
		SkipOpenLibs:        o.SkipOpenLibs,
		IncludeGoStackTrace: o.IncludeGoStackTrace,
	}
	if parent != nil {
		if opts.CallStackSize == 0 {
			opts.CallStackSize = parent.Options.CallStackSize
		}
		if opts.RegistrySize == 0 {
			opts.RegistrySize = parent.Options.RegistrySize
		}
	}
	return opts
}
