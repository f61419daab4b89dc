package hook

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func awaitTimeout[V any](t *testing.T, p *Promise[V]) (V, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := p.Await(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("promise did not settle")
	}
	return v, err
}

func TestAsyncSeriesBailWithFutures(t *testing.T) {
	h := NewAsyncSeriesBailHook[int, string](nil)
	_ = h.TapPromise("first", func(int) Future[Maybe[string]] { return Resolved(None[string]()) })
	_ = h.TapPromise("second", func(int) Future[Maybe[string]] {
		return Go(func() (Maybe[string], error) { return None[string](), nil })
	})
	_ = h.TapPromise("third", func(int) Future[Maybe[string]] {
		return Go(func() (Maybe[string], error) { return Some("done"), nil })
	})
	var fourth atomic.Int32
	_ = h.TapPromise("fourth", func(int) Future[Maybe[string]] {
		fourth.Add(1)
		return Resolved(Some("late"))
	})

	got, err := awaitTimeout(t, h.Promise(0))
	if err != nil {
		t.Fatalf("Promise() error = %v", err)
	}
	if v, _ := got.Get(); v != "done" {
		t.Errorf("Promise() = %q, want %q", v, "done")
	}
	if n := fourth.Load(); n != 0 {
		t.Errorf("fourth invoked %d times, want 0", n)
	}
}

func TestAsyncSeriesOrder(t *testing.T) {
	h := NewAsyncSeriesHook[int](nil)
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	_ = h.TapAsync("async", AsyncAction(func(_ int, done func(error)) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			record("async")
			done(nil)
		}()
	}))
	_ = h.Tap("sync", Action(func(int) error {
		record("sync")
		return nil
	}))
	_ = h.TapPromise("promise", func(int) Future[Maybe[Void]] {
		return Go(func() (Maybe[Void], error) {
			record("promise")
			return None[Void](), nil
		})
	})

	if _, err := awaitTimeout(t, h.Promise(0)); err != nil {
		t.Fatalf("Promise() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(order, []string{"async", "sync", "promise"}) {
		t.Errorf("order = %v, want [async sync promise]", order)
	}
}

func TestAsyncSeriesWaterfall(t *testing.T) {
	h, err := NewAsyncSeriesWaterfallHook[string]([]string{"source"})
	if err != nil {
		t.Fatalf("NewAsyncSeriesWaterfallHook() error = %v", err)
	}
	_ = h.TapAsync("suffix", func(s string, done Callback[string]) {
		go done(nil, Some(s+"-a"))
	})
	_ = h.TapPromise("keep", func(string) Future[Maybe[string]] {
		return Resolved(None[string]())
	})
	_ = h.Tap("upper", Replace(func(s string) (string, error) { return s + "-b", nil }))

	var results []string
	h.Intercept(Interceptor[string, string]{
		Result: func(r string) { results = append(results, r) },
	})

	got, err := awaitTimeout(t, h.Promise("x"))
	if err != nil {
		t.Fatalf("Promise() error = %v", err)
	}
	if v, _ := got.Get(); v != "x-a-b" {
		t.Errorf("Promise() = %q, want %q", v, "x-a-b")
	}
	if !slices.Equal(results, []string{"x-a", "x-a-b"}) {
		t.Errorf("results = %v, want [x-a x-a-b]", results)
	}
}

func TestParallelErrorWinsRace(t *testing.T) {
	h := NewAsyncParallelHook[int](nil)
	boom := errors.New("boom")
	release := make(chan struct{})
	settled := make(chan struct{})

	_ = h.TapPromise("slow", func(int) Future[Maybe[Void]] {
		p := NewPromise[Maybe[Void]]()
		go func() {
			<-release
			p.Resolve(None[Void]())
			close(settled)
		}()
		return p
	})
	_ = h.TapAsync("fails", AsyncAction(func(_ int, done func(error)) {
		done(boom)
	}))

	var (
		calls int
		got   error
	)
	h.CallAsync(0, func(err error, _ Maybe[Void]) {
		calls++
		got = err
	})

	if calls != 1 {
		t.Fatalf("callback invoked %d times before the slow tap settled, want 1", calls)
	}
	if !errors.Is(got, boom) {
		t.Errorf("callback error = %v, want boom", got)
	}

	close(release)
	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("slow tap did not settle")
	}
	if calls != 1 {
		t.Errorf("callback invoked %d times after late settlement, want 1", calls)
	}
}

func TestParallelCompletesAfterAll(t *testing.T) {
	h := NewAsyncParallelHook[int](nil)
	var count atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		_ = h.TapPromise(name, func(int) Future[Maybe[Void]] {
			return Go(func() (Maybe[Void], error) {
				time.Sleep(5 * time.Millisecond)
				count.Add(1)
				return None[Void](), nil
			})
		})
	}
	_ = h.Tap("inline", Action(func(int) error {
		count.Add(1)
		return nil
	}))

	if _, err := awaitTimeout(t, h.Promise(0)); err != nil {
		t.Fatalf("Promise() error = %v", err)
	}
	if n := count.Load(); n != 4 {
		t.Errorf("settled taps = %d, want 4", n)
	}
}

func TestParallelEmpty(t *testing.T) {
	h := NewAsyncParallelHook[int](nil)
	called := false
	h.CallAsync(0, func(err error, _ Maybe[Void]) {
		called = err == nil
	})
	if !called {
		t.Error("empty parallel hook did not complete")
	}
}

func TestPromiseTapNilFuture(t *testing.T) {
	tests := []struct {
		name string
		fn   PromiseFunc[int, Void]
	}{
		{"nil interface", func(int) Future[Maybe[Void]] { return nil }},
		{"nil promise", func(int) Future[Maybe[Void]] {
			var p *Promise[Maybe[Void]]
			return p
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAsyncSeriesHook[int](nil)
			_ = h.TapPromise("broken", tt.fn)
			_, err := awaitTimeout(t, h.Promise(0))
			if !errors.Is(err, ErrTapDidNotReturnFuture) {
				t.Errorf("Promise() error = %v, want ErrTapDidNotReturnFuture", err)
			}
			if !errors.Is(err, ErrTapExecution) {
				t.Errorf("Promise() error = %v, want it to match ErrTapExecution", err)
			}
		})
	}
}

func TestAsyncCallbackCalledTwice(t *testing.T) {
	h := NewAsyncSeriesHook[int](nil)
	var second atomic.Int32
	_ = h.TapAsync("twice", AsyncAction(func(_ int, done func(error)) {
		done(nil)
		done(errors.New("ignored"))
	}))
	_ = h.Tap("next", Action(func(int) error {
		second.Add(1)
		return nil
	}))

	calls := 0
	var got error
	h.CallAsync(0, func(err error, _ Maybe[Void]) {
		calls++
		got = err
	})
	if calls != 1 || got != nil {
		t.Errorf("callback = %d calls, err %v; want 1 call, nil", calls, got)
	}
	if second.Load() != 1 {
		t.Errorf("next ran %d times, want 1", second.Load())
	}
}

func TestLongSyncChain(t *testing.T) {
	h := NewAsyncSeriesHook[*int](nil)
	const n = 5000
	for i := 0; i < n; i++ {
		_ = h.Tap("inc", Action(func(p *int) error {
			*p++
			return nil
		}))
	}
	var v int
	done := false
	h.CallAsync(&v, func(err error, _ Maybe[Void]) {
		done = err == nil
	})
	if !done || v != n {
		t.Errorf("done = %v, v = %d; want true, %d", done, v, n)
	}
}

func TestPromiseAwaitContext(t *testing.T) {
	p := NewPromise[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Await() error = %v, want context.Canceled", err)
	}
	if p.Settled() {
		t.Error("Settled() = true, want false")
	}
	if !p.Resolve(1) || p.Resolve(2) {
		t.Error("Resolve should succeed once")
	}
	if v, err := p.Await(context.Background()); v != 1 || err != nil {
		t.Errorf("Await() = %d, %v; want 1, nil", v, err)
	}
}

func TestAsyncTapPanicAfterReportIsRaised(t *testing.T) {
	h := NewAsyncSeriesHook[int](nil)
	_ = h.TapAsync("late", func(_ int, done Callback[Void]) {
		done(nil, None[Void]())
		panic("after done")
	})

	var settled int
	defer func() {
		if r := recover(); r != "after done" {
			t.Errorf("recover() = %v, want %q", r, "after done")
		}
		if settled != 1 {
			t.Errorf("callback ran %d times, want 1", settled)
		}
	}()
	h.CallAsync(0, func(error, Maybe[Void]) { settled++ })
	t.Error("CallAsync() returned, want panic")
}

func TestGoRecoversPanic(t *testing.T) {
	p := Go(func() (int, error) { panic("bad") })
	_, err := awaitTimeout(t, p)
	if !errors.Is(err, ErrTapPanic) {
		t.Errorf("Await() error = %v, want ErrTapPanic", err)
	}
}
