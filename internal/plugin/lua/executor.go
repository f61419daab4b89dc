package lua

import (
	"context"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/tapline/internal/hook"
)

const defaultQueueSize = 64

type job struct {
	ctx    context.Context
	fn     func(L *lua.LState) error
	settle func(error)
}

// Executor runs Lua work for async hooks on a single worker goroutine.
//
// Work is queued with Submit and completes through a hook.Promise, so a
// promise tap can hand its body to the executor and return immediately.
// Promises are settled off the worker goroutine: a tap chained after the
// settled one may submit again without waiting on itself.
//
//	exec := lua.NewExecutor(state, 0)
//	go exec.Run(ctx)
//	defer exec.Close()
type Executor struct {
	state *State
	queue chan *job
	done  chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewExecutor creates an executor for state. The queue size bounds how many
// submissions may wait before Submit blocks.
func NewExecutor(state *State, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Executor{
		state: state,
		queue: make(chan *job, queueSize),
		done:  make(chan struct{}),
	}
}

// Run processes queued work until ctx is cancelled or Close is called.
// Work still queued at that point fails with the reason.
func (e *Executor) Run(ctx context.Context) {
	for {
		if e.closed.Load() {
			e.drainQueue(ErrExecutorClosed)
			return
		}
		select {
		case <-ctx.Done():
			e.drainQueue(ctx.Err())
			return
		case <-e.done:
			e.drainQueue(ErrExecutorClosed)
			return
		case j := <-e.queue:
			err := e.state.Do(j.ctx, j.fn)
			go j.settle(err)
		}
	}
}

func (e *Executor) drainQueue(err error) {
	for {
		select {
		case j := <-e.queue:
			go j.settle(err)
		default:
			return
		}
	}
}

func (e *Executor) enqueue(j *job) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	select {
	case <-j.ctx.Done():
		return j.ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- j:
		return nil
	}
}

// Execute runs fn on the worker and waits for it.
func (e *Executor) Execute(ctx context.Context, fn func(L *lua.LState) error) error {
	p := Submit(ctx, e, func(L *lua.LState) (struct{}, error) {
		return struct{}{}, fn(L)
	})
	_, err := p.Await(ctx)
	return err
}

// Submit queues fn on e and returns a promise for its result.
func Submit[V any](ctx context.Context, e *Executor, fn func(L *lua.LState) (V, error)) *hook.Promise[V] {
	if ctx == nil {
		ctx = context.Background()
	}
	p := hook.NewPromise[V]()
	var value V
	j := &job{
		ctx: ctx,
		fn: func(L *lua.LState) error {
			var err error
			value, err = fn(L)
			return err
		},
		settle: func(err error) {
			if err != nil {
				p.Reject(err)
				return
			}
			p.Resolve(value)
		},
	}
	if err := e.enqueue(j); err != nil {
		p.Reject(err)
	}
	return p
}

// Close stops the executor. Queued work fails with ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}

// IsClosed returns true if the executor has been closed.
func (e *Executor) IsClosed() bool {
	return e.closed.Load()
}
