// Package lua runs tapline plugins written in Lua.
//
// It wraps gopher-lua with a sandboxed State, a value Bridge between Go and
// Lua, an Executor that moves Lua work off the caller's goroutine, and the
// "tapline.hooks" module through which scripts tap exposed hooks.
//
// # State
//
//	state, err := lua.NewState(
//	    lua.WithExecutionTimeout(2 * time.Second),
//	    lua.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
// Only the base, table, string and math libraries are opened. dofile,
// loadfile, load and loadstring are removed, and require resolves only
// preloaded modules. print is routed to the state's logger.
//
// # Hooks Module
//
// A Registry maps hook names to hooks exposed with Expose. Installing the
// registry on a state makes it available to scripts:
//
//	local hooks = require("tapline.hooks")
//
//	hooks.tap("transform", { name = "Banner", stage = -10 }, function(source)
//	    return "/* built by tapline */\n" .. source
//	end)
//
//	hooks.tap("done", "Notify", function(stats)
//	    print("built " .. stats.assets .. " assets")
//	end)
//
// A Lua tap returning nil produces no result. On async hooks Lua taps are
// registered as promise taps and run on the state's Executor.
package lua
