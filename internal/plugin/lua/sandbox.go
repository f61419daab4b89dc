package lua

import (
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// unsafeGlobals load code from outside the preload table.
var unsafeGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
}

// installSandbox strips file loading from L and routes print to logger.
//
// require keeps working but only resolves modules registered with
// PreloadModule: package.path is cleared and every loader after the
// preload loader is removed.
func installSandbox(L *lua.LState, logger *slog.Logger) {
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		pkg.RawSetString("path", lua.LString(""))
		pkg.RawSetString("cpath", lua.LString(""))
		pkg.RawSetString("loadlib", lua.LNil)
	}
	if loaders, ok := L.GetField(L.Get(lua.RegistryIndex), "_LOADERS").(*lua.LTable); ok {
		for loaders.Len() > 1 {
			loaders.Remove(loaders.Len())
		}
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		logger.Info(strings.Join(parts, "\t"))
		return 0
	}))
}
