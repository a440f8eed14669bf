package runtime

import (
	"fmt"
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luathread/errors"
)

// HandleTypeName is the metatable name registered for thread handles.
const HandleTypeName = "luathread.handle"

func (r *Runtime) exports() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"run":    r.luaRun,
		"join":   r.luaJoin,
		"status": r.luaStatus,
		"sleep":  luaSleep,
		"w":      r.luaWhatAmI,
	}
}

// Open registers the module in L as a global and in package.loaded, and
// returns the module table.
func (r *Runtime) Open(L *lua.LState) *lua.LTable {
	mod := L.RegisterModule(r.moduleName, r.exports()).(*lua.LTable)
	r.registerHandleType(L, mod)
	return mod
}

// Preload makes the module available to require() without creating a global.
func (r *Runtime) Preload(L *lua.LState) {
	L.PreloadModule(r.moduleName, r.Loader)
}

// Loader is a gopher-lua module loader pushing the module table.
func (r *Runtime) Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), r.exports())
	r.registerHandleType(L, mod)
	L.Push(mod)
	return 1
}

func (r *Runtime) registerHandleType(L *lua.LState, mod *lua.LTable) {
	mt := L.NewTypeMetatable(HandleTypeName)
	L.SetField(mt, "__index", mod)
	L.SetField(mt, "__tostring", L.NewFunction(luaHandleString))
	L.SetField(mt, "__metatable", lua.LString(HandleTypeName))
}

func (r *Runtime) newHandleValue(L *lua.LState, h *Handle) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = h
	L.SetMetatable(ud, L.GetTypeMetatable(HandleTypeName))
	return ud
}

// run(fn, ...) -> handle
func (r *Runtime) luaRun(L *lua.LState) int {
	top := L.GetTop()
	fn := L.Get(1)
	args := make([]lua.LValue, 0, max(top-1, 0))
	for i := 2; i <= top; i++ {
		args = append(args, L.Get(i))
	}
	// The values now belong to the new context.
	L.SetTop(0)

	h, err := r.Spawn(L, fn, args...)
	if err != nil {
		raise(L, err)
		return 0
	}
	L.Push(r.newHandleValue(L, h))
	return 1
}

// join(handle)
func (r *Runtime) luaJoin(L *lua.LState) int {
	h := checkHandle(L, 1)
	if err := h.Join(); err != nil {
		raise(L, err)
	}
	return 0
}

// status(handle) -> "running" | "joining" | "joined" | "detached"
func (r *Runtime) luaStatus(L *lua.LState) int {
	h := checkHandle(L, 1)
	L.Push(lua.LString(h.Status().String()))
	return 1
}

// sleep(seconds)
func luaSleep(L *lua.LState) int {
	secs := L.CheckNumber(1)
	if secs > 0 {
		time.Sleep(sleepDuration(float64(secs)))
	}
	return 0
}

// sleepDuration converts seconds to a Duration, saturating at the largest one.
func sleepDuration(secs float64) time.Duration {
	ns := secs * float64(time.Second)
	if ns >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(ns)
}

// w(...) reports the type of every positional argument.
func (r *Runtime) luaWhatAmI(L *lua.LState) int {
	args := make([]lua.LValue, L.GetTop())
	for i := range args {
		args[i] = L.Get(i + 1)
	}
	r.outMu.Lock()
	defer r.outMu.Unlock()
	WhatAmI(r.out, args...)
	return 0
}

func luaHandleString(L *lua.LState) int {
	h := checkHandle(L, 1)
	L.Push(lua.LString(fmt.Sprintf("thread: %d (%s)", h.ID(), h.Status())))
	return 1
}

func checkHandle(L *lua.LState, n int) *Handle {
	ud := L.CheckUserData(n)
	if h, ok := ud.Value.(*Handle); ok {
		return h
	}
	L.ArgError(n, "thread handle expected")
	return nil
}

// raise converts err into a Lua error using the host's conventions: argument
// errors become "bad argument" errors, everything else a plain runtime error.
func raise(L *lua.LState, err error) {
	if e, ok := err.(*errors.Error); ok {
		if e.Arg > 0 {
			msg := e.Detail
			if e.LuaType != "" {
				msg = fmt.Sprintf("%s, got %s", e.Detail, e.LuaType)
			}
			L.ArgError(e.Arg, msg)
			return
		}
		L.RaiseError("%s", e.Detail)
		return
	}
	L.RaiseError("%s", err.Error())
}
