package hook

import "slices"

// QueriedHook is a read-only view of a hook restricted to a stage range.
// See the package documentation for how bounded ranges complete.
type QueriedHook[T, R any] struct {
	hook *Hook[T, R]
	rng  StageRange
	taps []Tap[T, R]
}

// Hook returns the underlying hook.
func (q *QueriedHook[T, R]) Hook() *Hook[T, R] {
	return q.hook
}

// Range returns the queried stage range.
func (q *QueriedHook[T, R]) Range() StageRange {
	return q.rng
}

// Taps returns the in-range taps in execution order.
func (q *QueriedHook[T, R]) Taps() []Tap[T, R] {
	return slices.Clone(q.taps)
}

// IsUsed reports whether invoking the view could have any observable
// effect: it has in-range taps, or a call interceptor with an open lower
// bound, or a done interceptor with an open upper bound.
func (q *QueriedHook[T, R]) IsUsed() bool {
	if len(q.taps) > 0 {
		return true
	}
	ics := q.hook.snapshotInterceptors()
	if q.rng.OpenBelow() && ics.hasCall() {
		return true
	}
	return q.rng.OpenAbove() && ics.hasDone()
}

// CallAsync runs the in-range taps and reports the outcome to cb.
// On success cb runs only when the range is open above.
func (q *QueriedHook[T, R]) CallAsync(arg T, cb Callback[R]) {
	ics := q.hook.snapshotInterceptors()
	q.hook.runner.run(q.hook, q, ics, arg, func(o outcome[R]) {
		switch {
		case o.err != nil:
			cb(o.err, None[R]())
		case o.bailed:
			cb(nil, o.result)
		case q.rng.OpenAbove():
			ics.fireDone()
			cb(nil, o.result)
		}
	})
}

// Call runs a sync hook's in-range taps and returns the outcome. It
// returns ErrHookKindMismatch on async kinds. A range bounded above yields
// None unless a tap bails.
func (q *QueriedHook[T, R]) Call(arg T) (Maybe[R], error) {
	if !q.hook.kind.Blocking() {
		return None[R](), ErrHookKindMismatch
	}
	var (
		result Maybe[R]
		err    error
	)
	q.CallAsync(arg, func(e error, r Maybe[R]) {
		err = e
		result = r
	})
	return result, err
}

// Promise runs the in-range taps and returns a promise of the outcome.
// The promise never resolves successfully when the range is bounded above.
func (q *QueriedHook[T, R]) Promise(arg T) *Promise[Maybe[R]] {
	p := NewPromise[Maybe[R]]()
	q.CallAsync(arg, func(err error, r Maybe[R]) {
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(r)
	})
	return p
}
