package luathread

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luathread/runtime"
)

// Spawner starts script functions on threads of their own.
type Spawner interface {
	Spawn(L *lua.LState, fn lua.LValue, args ...lua.LValue) (*runtime.Handle, error)
}

// Joiner waits for a spawned thread.
type Joiner interface {
	Join() error
	Done() <-chan struct{}
}

var (
	_ Spawner = (*runtime.Runtime)(nil)
	_ Joiner  = (*runtime.Handle)(nil)
)

// NewState creates an interpreter state with rt's thread module opened as a global.
func NewState(rt *runtime.Runtime, opts lua.Options) *lua.LState {
	L := lua.NewState(opts)
	rt.Open(L)
	return L
}
