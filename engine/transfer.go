package engine

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luathread/errors"
)

// mover rebuilds values from one state inside another.
//
// Interpreter states are not safe for concurrent use, so a value handed to a
// context must not stay reachable from its parent's globals or registers.
// Scalars are copied, tables and functions are rebuilt in the destination and
// memoized, which keeps identity and cycles intact within one transfer.
type mover struct {
	src      *lua.LState
	dst      *lua.LState
	userData func(dst *lua.LState, ud *lua.LUserData) (lua.LValue, bool)
	tables   map[*lua.LTable]*lua.LTable
	funcs    map[*lua.LFunction]*lua.LFunction
	upvalues map[*lua.Upvalue]*lua.Upvalue
}

func newMover(src, dst *lua.LState, userData func(*lua.LState, *lua.LUserData) (lua.LValue, bool)) *mover {
	return &mover{
		src:      src,
		dst:      dst,
		userData: userData,
		tables:   make(map[*lua.LTable]*lua.LTable),
		funcs:    make(map[*lua.LFunction]*lua.LFunction),
		upvalues: make(map[*lua.Upvalue]*lua.Upvalue),
	}
}

func (m *mover) move(v lua.LValue) (lua.LValue, error) {
	switch lv := v.(type) {
	case nil, *lua.LNilType:
		return lua.LNil, nil
	case lua.LBool, lua.LNumber, lua.LString:
		return v, nil
	case *lua.LTable:
		return m.moveTable(lv)
	case *lua.LFunction:
		return m.moveFunction(lv)
	case *lua.LUserData:
		return m.moveUserData(lv), nil
	case lua.LChannel:
		// Channels are Go channels and safe to share between states.
		return v, nil
	case *lua.LState:
		return nil, errors.Unsupported(errors.PhaseTransfer, v.Type().String(),
			"coroutines cannot move between contexts")
	default:
		return nil, errors.Unsupported(errors.PhaseTransfer, v.Type().String(),
			"value cannot move between contexts")
	}
}

func (m *mover) moveTable(src *lua.LTable) (lua.LValue, error) {
	if dst, ok := m.tables[src]; ok {
		return dst, nil
	}
	if m.src != nil && src == m.src.G.Global {
		return m.dst.G.Global, nil
	}

	dst := m.dst.NewTable()
	m.tables[src] = dst

	var err error
	src.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		var mk, mv lua.LValue
		if mk, err = m.move(k); err != nil {
			return
		}
		if mv, err = m.move(v); err != nil {
			return
		}
		dst.RawSet(mk, mv)
	})
	if err != nil {
		return nil, err
	}

	if src.Metatable != nil && src.Metatable != lua.LNil {
		mt, err := m.move(src.Metatable)
		if err != nil {
			return nil, err
		}
		dst.Metatable = mt
	}
	return dst, nil
}

func (m *mover) moveFunction(src *lua.LFunction) (*lua.LFunction, error) {
	if dst, ok := m.funcs[src]; ok {
		return dst, nil
	}

	// Protos are immutable once compiled and may be shared between states.
	dst := &lua.LFunction{
		IsG:       src.IsG,
		Proto:     src.Proto,
		GFunction: src.GFunction,
		Env:       m.dst.G.Global,
		Upvalues:  make([]*lua.Upvalue, len(src.Upvalues)),
	}
	m.funcs[src] = dst

	if src.Env != nil && (m.src == nil || src.Env != m.src.G.Global) {
		env, err := m.moveTable(src.Env)
		if err != nil {
			return nil, err
		}
		dst.Env = env.(*lua.LTable)
	}

	for i, uv := range src.Upvalues {
		nuv, err := m.moveUpvalue(uv)
		if err != nil {
			return nil, err
		}
		dst.Upvalues[i] = nuv
	}
	return dst, nil
}

func (m *mover) moveUpvalue(src *lua.Upvalue) (*lua.Upvalue, error) {
	if src == nil {
		return nil, nil
	}
	if dst, ok := m.upvalues[src]; ok {
		return dst, nil
	}

	// Upvalue has no exported constructor; a closure built by the target state
	// yields a closed one. It is memoized before its value is moved so that
	// self-referencing closures resolve to the same cell.
	dst := m.dst.NewClosure(upvalueCarrier, lua.LNil).Upvalues[0]
	m.upvalues[src] = dst

	v, err := m.move(src.Value())
	if err != nil {
		return nil, err
	}
	dst.SetValue(v)
	return dst, nil
}

func (m *mover) moveUserData(src *lua.LUserData) lua.LValue {
	if m.userData != nil {
		if v, ok := m.userData(m.dst, src); ok {
			return v
		}
	}
	return src
}

func upvalueCarrier(L *lua.LState) int {
	return 0
}
