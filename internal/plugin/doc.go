// Package plugin discovers, loads and manages tapline's Lua plugins.
//
// A plugin is a Lua script that taps the hooks a pipeline exposes through
// the "tapline.hooks" module. Each loaded plugin gets its own sandboxed Lua
// state and executor; see package lua for the runtime.
//
// # Plugin Structure
//
// Plugins can be either single-file or directory-based:
//
//	plugins/banner.lua
//
//	plugins/minify/
//	├── plugin.json      # Manifest (optional)
//	└── init.lua         # Entry point
//
// # Manifest
//
//	{
//	  "name": "minify",
//	  "version": "1.0.0",
//	  "description": "Strips whitespace from sources",
//	  "main": "init.lua",
//	  "dependencies": ["banner"],
//	  "hooks": ["transform"],
//	  "configSchema": {
//	    "level": {"type": "number", "default": 1}
//	  }
//	}
//
// dependencies load first, so a plugin's taps are registered after those of
// the plugins it names. hooks lists the hooks the plugin expects; loading
// fails when one of them is not exposed.
//
// # Lifecycle
//
// Loading runs the entry point, which registers taps. Activation then calls
// the script's global setup(config) function, if any, with the manifest
// defaults merged with user configuration. Unloading closes the Lua state;
// taps already registered stay on their hooks, so hosts reload plugins by
// rebuilding the hook set and loading again.
//
//	mgr := plugin.NewManager(plugin.ManagerConfig{Paths: []string{"plugins"}})
//	if err := mgr.LoadAll(ctx, registry); err != nil {
//	    logger.Warn("some plugins failed to load", "error", err)
//	}
//	defer mgr.UnloadAll(ctx)
package plugin
