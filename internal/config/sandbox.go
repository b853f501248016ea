package config

import (
	lua "github.com/yuin/gopher-lua"
)

// VM limits. The configuration is a handful of assignments; anything that
// recurses deeply is a mistake.
const (
	luaCallStackSize = 256
	luaRegistrySize  = 8 * 1024
)

// sandboxLuaVM removes everything that reaches outside the VM: the os, io
// and debug libraries and every way of loading more code. string, table,
// math and the basic functions stay.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range []string{
		"os", "io", "debug",
		"require", "dofile", "loadfile", "load", "loadstring",
		"collectgarbage",
	} {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM creates a new Lua VM with sandboxing applied.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		CallStackSize: luaCallStackSize,
		RegistrySize:  luaRegistrySize,
	})
	sandboxLuaVM(L)
	return L
}
