// Package hook provides the typed extension-point engine that build phases
// are wired through.
//
// A Hook holds an ordered list of taps (registered callbacks) and a list of
// interceptors (observers). Drivers invoke a hook and receive exactly one
// terminal outcome: a result, an error, or, for staged invocations, nothing.
//
// # Hook Kinds
//
// Seven execution disciplines are provided:
//
//   - KindSync: taps run in order; the first error aborts the rest.
//   - KindSyncBail: taps run in order until one returns Some.
//   - KindSyncWaterfall: each Some result replaces the value passed on.
//   - KindAsyncParallel: every tap is dispatched before any is awaited.
//   - KindAsyncSeries: taps run in order and may suspend.
//   - KindAsyncSeriesBail: like KindAsyncSeries, stopping at the first Some.
//   - KindAsyncSeriesWaterfall: value threading where steps may suspend.
//
// Sync kinds accept only Tap registrations and support the blocking Call
// entry point. Async kinds additionally accept TapAsync and TapPromise, and
// are invoked through CallAsync or Promise.
//
// # Ordering
//
// Taps are ordered by stage (lower runs earlier) and by "before"
// constraints, which name taps that must run after the new one. A before
// constraint dominates stage for the taps it names. Taps of equal stage
// keep registration order. Stages are clamped to the int32 domain with
// SafeStage.
//
// # Results
//
// Tap bodies report results as a Maybe. None means "no result" and never
// bails or overrides a waterfall value; Some with a zero value does.
//
// # Staged Invocation
//
// QueryStageRange returns a QueriedHook restricted to taps whose stage lies
// in a half-open range [From, To). Call interceptors fire only when From is
// MinStage. Done interceptors and the success callback fire only when To is
// MaxStage.
//
// A query whose upper bound is not MaxStage never reports success
// completion: CallAsync never invokes its callback on success, Promise
// never resolves, and Call returns None. Errors and bail results are still
// delivered. Such queries exist to split one extension point into
// externally sequenced phases; use CallStaged (or a coordinator like it)
// when completion of the whole hook matters. Waiting on a bounded query
// with an unbounded context will hang.
//
// # Concurrency
//
// Registration is safe for concurrent use. Tap and interceptor lists are
// copy-on-write, so an invocation works on a snapshot. Registering taps on
// a hook while an invocation of that hook is in flight is allowed but the
// in-flight invocation will not observe them.
//
// The engine has no timeouts or cancellation. A tap that never settles
// stalls its invocation; Promise.Await takes a context so the waiter can
// give up.
//
// # Usage
//
//	compile := hook.NewAsyncSeriesHook[*Compilation]([]string{"compilation"},
//	    hook.WithName("compile"))
//
//	_ = compile.Tap("LoggerPlugin", hook.Action(func(c *Compilation) error {
//	    log.Printf("compiling %s", c.Name)
//	    return nil
//	}))
//
//	_ = compile.TapPromise("CachePlugin", func(c *Compilation) hook.Future[hook.Maybe[hook.Void]] {
//	    return hook.Go(func() (hook.Maybe[hook.Void], error) {
//	        return hook.None[hook.Void](), c.Cache.Restore()
//	    })
//	}, hook.WithStage(-100))
//
//	if _, err := compile.Promise(c).Await(ctx); err != nil {
//	    // Handle tap failure
//	}
package hook
