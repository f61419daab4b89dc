package hook

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Future is a value that settles once, either with a value or an error.
// Promise taps return a Future; any type with OnSettled qualifies.
type Future[V any] interface {
	// OnSettled registers fn to run once the future settles. If it has
	// already settled, fn runs immediately on the caller's goroutine.
	OnSettled(fn func(V, error))
}

// Promise is the standard Future implementation.
// The zero value is not usable; create one with NewPromise.
type Promise[V any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     V
	err       error
	listeners []func(V, error)
}

// NewPromise creates an unsettled promise.
func NewPromise[V any]() *Promise[V] {
	return &Promise[V]{done: make(chan struct{})}
}

// Resolved returns a promise already settled with v.
func Resolved[V any](v V) *Promise[V] {
	p := NewPromise[V]()
	p.Resolve(v)
	return p
}

// Rejected returns a promise already settled with err.
func Rejected[V any](err error) *Promise[V] {
	p := NewPromise[V]()
	p.Reject(err)
	return p
}

// Go runs fn on a new goroutine and settles the returned promise with its
// outcome. A panic in fn rejects the promise.
func Go[V any](fn func() (V, error)) *Promise[V] {
	p := NewPromise[V]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Reject(&TapError{
					Err:   fmt.Errorf("%w: %v", ErrTapPanic, r),
					Panic: r,
					Stack: debug.Stack(),
				})
			}
		}()
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Resolve settles the promise with v. It returns false if the promise was
// already settled.
func (p *Promise[V]) Resolve(v V) bool {
	return p.settle(v, nil)
}

// Reject settles the promise with err. It returns false if the promise was
// already settled.
func (p *Promise[V]) Reject(err error) bool {
	var zero V
	return p.settle(zero, err)
}

func (p *Promise[V]) settle(v V, err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.value = v
	p.err = err
	listeners := p.listeners
	p.listeners = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(v, err)
	}
	return true
}

// OnSettled implements Future.
func (p *Promise[V]) OnSettled(fn func(V, error)) {
	p.mu.Lock()
	if !p.settled {
		p.listeners = append(p.listeners, fn)
		p.mu.Unlock()
		return
	}
	v, err := p.value, p.err
	p.mu.Unlock()
	fn(v, err)
}

// Done returns a channel closed when the promise settles.
func (p *Promise[V]) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has settled.
func (p *Promise[V]) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.value, p.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
