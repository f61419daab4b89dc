// Package app hosts tapline's build pipeline: the hooks a bundler exposes
// to plugins, the first-party steps interleaved with them, and the Lua
// plugins that tap them.
//
// A build runs the hooks in order:
//
//	initialize      SyncHook(session)
//	resolveFor[t]   AsyncSeriesBailHook(request) -> path, one per module type
//	transform       SyncWaterfallHook(source)
//	processAssets   AsyncSeriesHook(assets), split at stage breakpoints
//	emit            AsyncParallelHook(assets)
//	afterEmit       AsyncSeriesHook(stats)
//	finished        AsyncSeriesHook(stats)
//
// "done" taps afterEmit and finished together.
//
// The pipeline owns no compiler: payloads are plain data and plugins
// decide what happens to them.
package app
