package hook

import (
	"fmt"
	"sync/atomic"
)

// Around wraps a tap body so that start runs immediately before it and the
// returned finish func runs once the body settles, with its error. It is
// meant for Register interceptors that measure or trace taps.
//
// A panicking sync body calls finish with an ErrTapPanic error and then
// keeps panicking.
func Around[T, R any](tap Tap[T, R], start func(tap Tap[T, R]) (finish func(err error))) Tap[T, R] {
	orig := tap
	switch tap.Kind {
	case SyncTap:
		inner := tap.Sync
		tap.Sync = func(arg T) (r Maybe[R], err error) {
			finish := start(orig)
			defer func() {
				if rec := recover(); rec != nil {
					finish(fmt.Errorf("%w: %v", ErrTapPanic, rec))
					panic(rec)
				}
			}()
			r, err = inner(arg)
			finish(err)
			return r, err
		}
	case AsyncTap:
		inner := tap.Async
		tap.Async = func(arg T, done Callback[R]) {
			finish := start(orig)
			var finished atomic.Bool
			inner(arg, func(err error, r Maybe[R]) {
				if finished.CompareAndSwap(false, true) {
					finish(err)
				}
				done(err, r)
			})
		}
	case PromiseTap:
		inner := tap.Promise
		tap.Promise = func(arg T) Future[Maybe[R]] {
			finish := start(orig)
			f := inner(arg)
			if isNilFuture(f) {
				finish(ErrTapDidNotReturnFuture)
				return nil
			}
			p := NewPromise[Maybe[R]]()
			f.OnSettled(func(r Maybe[R], err error) {
				finish(err)
				if err != nil {
					p.Reject(err)
					return
				}
				p.Resolve(r)
			})
			return p
		}
	}
	return tap
}
