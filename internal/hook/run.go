package hook

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// outcome is what the internal primitive settles with. Exactly one of err,
// bailed, or exhaustion of the range (neither) holds.
type outcome[R any] struct {
	err    error
	bailed bool
	result Maybe[R]
}

// runner executes the taps of a queried hook and always settles exactly
// once, regardless of the range. Completion gating belongs to callers.
type runner[T, R any] interface {
	run(h *Hook[T, R], q *QueriedHook[T, R], ics interceptors[T, R], arg T, settle func(outcome[R]))
}

type seriesRunner[T, R any] struct{}

func (seriesRunner[T, R]) run(h *Hook[T, R], q *QueriedHook[T, R], ics interceptors[T, R], arg T, settle func(outcome[R])) {
	if q.rng.OpenBelow() {
		ics.fireCall(arg)
	}

	taps := q.taps
	current := arg
	chain(len(taps), func(i int, next func(bool)) {
		tap := taps[i]
		ics.fireTap(tap)
		h.invoke(tap, current, func(r Maybe[R], err error) {
			if err != nil {
				ics.fireError(err)
				next(false)
				settle(outcome[R]{err: err})
				return
			}
			v, ok := r.Get()
			switch {
			case ok && h.kind.Bail():
				ics.fireResult(v)
				next(false)
				settle(outcome[R]{bailed: true, result: r})
				return
			case ok && h.thread != nil:
				ics.fireResult(v)
				current = h.thread.toArg(v)
			}
			next(true)
		})
	}, func() {
		if h.thread != nil {
			settle(outcome[R]{result: Some(h.thread.toResult(current))})
			return
		}
		settle(outcome[R]{})
	})
}

type parallelRunner[T, R any] struct{}

func (parallelRunner[T, R]) run(h *Hook[T, R], q *QueriedHook[T, R], ics interceptors[T, R], arg T, settle func(outcome[R])) {
	if q.rng.OpenBelow() {
		ics.fireCall(arg)
	}

	taps := q.taps
	if len(taps) == 0 {
		settle(outcome[R]{})
		return
	}

	var (
		mu        sync.Mutex
		remaining = len(taps)
		finished  bool
	)
	for _, tap := range taps {
		mu.Lock()
		stop := finished
		mu.Unlock()
		if stop {
			return
		}

		ics.fireTap(tap)
		h.invoke(tap, arg, func(_ Maybe[R], err error) {
			mu.Lock()
			if finished {
				mu.Unlock()
				return
			}
			if err != nil {
				finished = true
				mu.Unlock()
				ics.fireError(err)
				settle(outcome[R]{err: err})
				return
			}
			remaining--
			if remaining > 0 {
				mu.Unlock()
				return
			}
			finished = true
			mu.Unlock()
			settle(outcome[R]{})
		})
	}
}

const (
	stepPending int32 = iota
	stepSync
	stepAsync
)

// chain runs n steps in order. Each step must call next exactly once;
// next(false) ends the chain without calling finish. Steps that complete
// synchronously are looped rather than recursed, so long chains of sync
// taps do not grow the stack.
func chain(n int, step func(i int, next func(cont bool)), finish func()) {
	var run func(int)
	run = func(i int) {
		for ; i < n; i++ {
			var (
				state atomic.Int32
				cont  bool
			)
			idx := i
			step(idx, func(c bool) {
				cont = c
				if state.CompareAndSwap(stepPending, stepSync) {
					return
				}
				if c {
					run(idx + 1)
				}
			})
			if state.CompareAndSwap(stepPending, stepAsync) {
				return
			}
			if !cont {
				return
			}
		}
		finish()
	}
	run(0)
}

// invoke runs one tap body and reports its outcome to done exactly once.
// Errors and panics raised before the tap reports are wrapped in *TapError.
func (h *Hook[T, R]) invoke(tap Tap[T, R], arg T, done func(Maybe[R], error)) {
	var reported atomic.Bool
	report := func(r Maybe[R], err error) {
		if !reported.CompareAndSwap(false, true) {
			return
		}
		if err != nil {
			done(None[R](), h.tapError(tap, err))
			return
		}
		done(r, nil)
	}

	defer func() {
		if rec := recover(); rec != nil {
			// Once the tap has reported, a panic is re-raised whether it came
			// from downstream of the callback or from the tap's own body
			// after calling done. The outcome is already delivered.
			if reported.Load() {
				panic(rec)
			}
			report(None[R](), &TapError{
				Hook:  h.name,
				Tap:   tap.Name,
				Err:   fmt.Errorf("%w: %v", ErrTapPanic, rec),
				Panic: rec,
				Stack: debug.Stack(),
			})
		}
	}()

	switch tap.Kind {
	case SyncTap:
		report(tap.Sync(arg))
	case AsyncTap:
		tap.Async(arg, func(err error, r Maybe[R]) {
			report(r, err)
		})
	case PromiseTap:
		f := tap.Promise(arg)
		if isNilFuture(f) {
			report(None[R](), ErrTapDidNotReturnFuture)
			return
		}
		f.OnSettled(func(r Maybe[R], err error) {
			report(r, err)
		})
	}
}

func (h *Hook[T, R]) tapError(tap Tap[T, R], err error) error {
	if te, ok := err.(*TapError); ok && te.Tap == tap.Name && te.Hook == h.name {
		return te
	}
	return &TapError{Hook: h.name, Tap: tap.Name, Err: err}
}

func isNilFuture[V any](f Future[V]) bool {
	if f == nil {
		return true
	}
	p, ok := f.(*Promise[V])
	return ok && p == nil
}
