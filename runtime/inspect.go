package runtime

import (
	"fmt"
	"io"

	lua "github.com/yuin/gopher-lua"
)

// TypeCategory returns the human-readable category name of a Lua value.
func TypeCategory(v lua.LValue) string {
	return luaTypeName(v)
}

// WhatAmI writes one "Argument i: <category>" line per value.
func WhatAmI(w io.Writer, args ...lua.LValue) {
	for i, v := range args {
		fmt.Fprintf(w, "Argument %d: %s\n", i+1, TypeCategory(v))
	}
}
