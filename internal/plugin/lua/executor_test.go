package lua

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func newTestExecutor(t *testing.T, state *State) *Executor {
	t.Helper()
	exec := NewExecutor(state, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go exec.Run(ctx)
	t.Cleanup(func() {
		exec.Close()
		cancel()
	})
	return exec
}

func TestNewExecutorDefaultQueueSize(t *testing.T) {
	exec := NewExecutor(newTestState(t), 0)
	if cap(exec.queue) != defaultQueueSize {
		t.Errorf("queue size = %d, want %d", cap(exec.queue), defaultQueueSize)
	}
	if exec.IsClosed() {
		t.Error("new executor should not be closed")
	}
}

func TestExecutorSubmit(t *testing.T) {
	state := newTestState(t)
	exec := newTestExecutor(t, state)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := Submit(ctx, exec, func(L *glua.LState) (string, error) {
		if err := L.DoString(`v = string.upper("ok")`); err != nil {
			return "", err
		}
		return L.GetGlobal("v").String(), nil
	})
	got, err := p.Await(ctx)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if got != "OK" {
		t.Errorf("result = %q, want OK", got)
	}
}

func TestExecutorSubmitError(t *testing.T) {
	state := newTestState(t)
	exec := newTestExecutor(t, state)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := exec.Execute(ctx, func(L *glua.LState) error {
		return L.DoString(`error("boom")`)
	})
	if err == nil {
		t.Fatal("Execute() should return the Lua error")
	}
}

func TestExecutorSerializes(t *testing.T) {
	state := newTestState(t)
	exec := newTestExecutor(t, state)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := state.DoString(ctx, `counter = 0`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := exec.Execute(ctx, func(L *glua.LState) error {
				return L.DoString(`counter = counter + 1`)
			})
			if err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := state.GetGlobal("counter"); got != glua.LNumber(n) {
		t.Errorf("counter = %v, want %d", got, n)
	}
}

func TestExecutorClosed(t *testing.T) {
	exec := NewExecutor(newTestState(t), 1)
	exec.Close()
	exec.Close()

	p := Submit(context.Background(), exec, func(*glua.LState) (int, error) { return 1, nil })
	if _, err := p.Await(context.Background()); !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("Await() error = %v, want ErrExecutorClosed", err)
	}
	if !exec.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
}

func TestExecutorDrainOnClose(t *testing.T) {
	exec := NewExecutor(newTestState(t), 4)

	p := Submit(context.Background(), exec, func(*glua.LState) (int, error) { return 1, nil })
	exec.Close()
	exec.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := p.Await(ctx); !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("Await() error = %v, want ErrExecutorClosed", err)
	}
}
