package hook

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
)

func recorder(order *[]string, name string) SyncFunc[int, Void] {
	return Action(func(int) error {
		*order = append(*order, name)
		return nil
	})
}

func tapNames[T, R any](taps []Tap[T, R]) []string {
	names := make([]string, len(taps))
	for i, t := range taps {
		names[i] = t.Name
	}
	return names
}

func TestStageOrdering(t *testing.T) {
	tests := []struct {
		name  string
		first string
	}{
		{"A registered first", "A"},
		{"B registered first", "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			h := NewSyncHook[int](nil)
			stages := map[string]int64{"A": 1, "B": 2}
			regs := []string{"A", "B"}
			if tt.first == "B" {
				regs = []string{"B", "A"}
			}
			for _, n := range regs {
				if err := h.Tap(n, recorder(&order, n), WithStage(stages[n])); err != nil {
					t.Fatalf("Tap(%s) error = %v", n, err)
				}
			}
			if _, err := h.Call(0); err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if !slices.Equal(order, []string{"A", "B"}) {
				t.Errorf("order = %v, want [A B]", order)
			}
		})
	}
}

func TestBeforeDominatesStage(t *testing.T) {
	var order []string
	h := NewSyncHook[int](nil)
	_ = h.Tap("A", recorder(&order, "A"), WithStage(5))
	_ = h.Tap("B", recorder(&order, "B"), WithStage(-5))
	_ = h.Tap("C", recorder(&order, "C"), WithBefore("A"))

	if got := tapNames(h.Taps()); !slices.Equal(got, []string{"B", "C", "A"}) {
		t.Errorf("Taps() = %v, want [B C A]", got)
	}
	if _, err := h.Call(0); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !slices.Equal(order, []string{"B", "C", "A"}) {
		t.Errorf("order = %v, want [B C A]", order)
	}
}

func TestInsertionOrdering(t *testing.T) {
	type reg struct {
		name   string
		stage  int64
		before []string
	}
	tests := []struct {
		name string
		regs []reg
		want []string
	}{
		{
			name: "equal stages keep registration order",
			regs: []reg{{name: "a"}, {name: "b"}, {name: "c"}},
			want: []string{"a", "b", "c"},
		},
		{
			name: "lower stage moves earlier",
			regs: []reg{{name: "a"}, {name: "b"}, {name: "c", stage: -1}},
			want: []string{"c", "a", "b"},
		},
		{
			name: "before multiple names",
			regs: []reg{{name: "a"}, {name: "b"}, {name: "c", before: []string{"a", "b"}}},
			want: []string{"c", "a", "b"},
		},
		{
			name: "before unknown name goes first",
			regs: []reg{{name: "a"}, {name: "b"}, {name: "c", before: []string{"missing"}}},
			want: []string{"c", "a", "b"},
		},
		{
			name: "stage governs after before is satisfied",
			regs: []reg{{name: "a", stage: -10}, {name: "b"}, {name: "c", stage: 10}, {name: "d", before: []string{"c"}}},
			want: []string{"a", "b", "d", "c"},
		},
		{
			name: "higher stage stays after",
			regs: []reg{{name: "a", stage: 10}, {name: "b", stage: 5}, {name: "c", stage: 7}},
			want: []string{"b", "c", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSyncHook[int](nil)
			for _, r := range tt.regs {
				opts := []TapOption{WithStage(r.stage)}
				if len(r.before) > 0 {
					opts = append(opts, WithBefore(r.before...))
				}
				if err := h.Tap(r.name, Action(func(int) error { return nil }), opts...); err != nil {
					t.Fatalf("Tap(%s) error = %v", r.name, err)
				}
			}
			if got := tapNames(h.Taps()); !slices.Equal(got, tt.want) {
				t.Errorf("Taps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyncWaterfallThreading(t *testing.T) {
	h, err := NewSyncWaterfallHook[int]([]string{"value"})
	if err != nil {
		t.Fatalf("NewSyncWaterfallHook() error = %v", err)
	}
	_ = h.Tap("inc", func(v int) (Maybe[int], error) { return Some(v + 1), nil })
	_ = h.Tap("skip", func(int) (Maybe[int], error) { return None[int](), nil })
	_ = h.Tap("times", func(v int) (Maybe[int], error) { return Some(v * 10), nil })

	got, err := h.Call(1)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if v, ok := got.Get(); !ok || v != 20 {
		t.Errorf("Call(1) = %v, %v, want 20, true", v, ok)
	}
}

func TestSyncWaterfallZeroOverride(t *testing.T) {
	h, _ := NewSyncWaterfallHook[int]([]string{"value"})
	_ = h.Tap("zero", func(int) (Maybe[int], error) { return Some(0), nil })

	got, _ := h.Call(42)
	if v := got.OrElse(-1); v != 0 {
		t.Errorf("Call(42) = %d, want 0", v)
	}
}

func TestWaterfallRequiresArgument(t *testing.T) {
	if _, err := NewSyncWaterfallHook[int](nil); !errors.Is(err, ErrWaterfallRequiresArgument) {
		t.Errorf("NewSyncWaterfallHook(nil) error = %v, want ErrWaterfallRequiresArgument", err)
	}
	if _, err := NewAsyncSeriesWaterfallHook[int]([]string{}); !errors.Is(err, ErrWaterfallRequiresArgument) {
		t.Errorf("NewAsyncSeriesWaterfallHook([]) error = %v, want ErrWaterfallRequiresArgument", err)
	}
}

func TestSyncBailShortCircuit(t *testing.T) {
	h := NewSyncBailHook[int, string](nil)
	calls := 0
	_ = h.Tap("none", func(int) (Maybe[string], error) { return None[string](), nil })
	_ = h.Tap("stop", func(int) (Maybe[string], error) { return Some("stop"), nil })
	_ = h.Tap("never", func(int) (Maybe[string], error) {
		calls++
		return Some("never"), nil
	})

	got, err := h.Call(0)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if v, _ := got.Get(); v != "stop" {
		t.Errorf("Call() = %q, want %q", v, "stop")
	}
	if calls != 0 {
		t.Errorf("never called %d times, want 0", calls)
	}
}

func TestSyncBailNoResult(t *testing.T) {
	h := NewSyncBailHook[int, string](nil)
	_ = h.Tap("none", func(int) (Maybe[string], error) { return None[string](), nil })

	got, err := h.Call(0)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got.IsSome() {
		t.Errorf("Call() = %v, want None", got)
	}
}

func TestSyncErrorAborts(t *testing.T) {
	h := NewSyncHook[int](nil, WithName("compile"))
	boom := errors.New("boom")
	ran := false
	_ = h.Tap("fail", Action(func(int) error { return boom }))
	_ = h.Tap("after", Action(func(int) error {
		ran = true
		return nil
	}))

	_, err := h.Call(0)
	if !errors.Is(err, boom) {
		t.Fatalf("Call() error = %v, want boom", err)
	}
	if !errors.Is(err, ErrTapExecution) {
		t.Errorf("Call() error does not match ErrTapExecution")
	}
	var te *TapError
	if !errors.As(err, &te) {
		t.Fatalf("Call() error is not *TapError")
	}
	if te.Hook != "compile" || te.Tap != "fail" {
		t.Errorf("TapError = {%q, %q}, want {compile, fail}", te.Hook, te.Tap)
	}
	if ran {
		t.Error("tap after the failing tap ran")
	}
}

func TestTapPanicRecovered(t *testing.T) {
	h := NewSyncHook[int](nil)
	_ = h.Tap("panics", Action(func(int) error { panic("bad") }))

	_, err := h.Call(0)
	if !errors.Is(err, ErrTapPanic) {
		t.Fatalf("Call() error = %v, want ErrTapPanic", err)
	}
	var te *TapError
	if !errors.As(err, &te) || !te.Panicked() {
		t.Fatalf("Call() error = %v, want panicked *TapError", err)
	}
	if len(te.Stack) == 0 {
		t.Error("TapError.Stack is empty")
	}
}

func TestStageClamp(t *testing.T) {
	tests := []struct {
		stage int64
		want  int32
	}{
		{0, 0},
		{-7, -7},
		{math.MaxInt32, math.MaxInt32},
		{math.MaxInt32 + 1, math.MaxInt32},
		{math.MinInt32 - 1, math.MinInt32},
		{math.MaxInt64, math.MaxInt32},
		{math.MinInt64, math.MinInt32},
	}

	for _, tt := range tests {
		if got := SafeStage(tt.stage); got != tt.want {
			t.Errorf("SafeStage(%d) = %d, want %d", tt.stage, got, tt.want)
		}
	}

	h := NewSyncHook[int](nil)
	_ = h.Tap("huge", Action(func(int) error { return nil }), WithStage(1<<40))
	_ = h.Tap("tiny", Action(func(int) error { return nil }), WithStage(-(1 << 40)))
	taps := h.Taps()
	if taps[0].Name != "tiny" || taps[0].Stage != math.MinInt32 {
		t.Errorf("taps[0] = %s@%d, want tiny@%d", taps[0].Name, taps[0].Stage, int32(math.MinInt32))
	}
	if taps[1].Name != "huge" || taps[1].Stage != math.MaxInt32 {
		t.Errorf("taps[1] = %s@%d, want huge@%d", taps[1].Name, taps[1].Stage, int32(math.MaxInt32))
	}
}

func TestRegistrationErrors(t *testing.T) {
	noop := Action(func(int) error { return nil })

	tests := []struct {
		name string
		reg  func(h *Hook[int, Void]) error
		want error
	}{
		{"empty name", func(h *Hook[int, Void]) error { return h.Tap("", noop) }, ErrMissingTapName},
		{"blank name", func(h *Hook[int, Void]) error { return h.Tap("  ", noop) }, ErrMissingTapName},
		{"nil body", func(h *Hook[int, Void]) error { return h.Tap("x", nil) }, ErrInvalidTapOptions},
		{"empty before", func(h *Hook[int, Void]) error { return h.Tap("x", noop, WithBefore("")) }, ErrInvalidTapOptions},
		{"async on sync", func(h *Hook[int, Void]) error {
			return h.TapAsync("x", AsyncAction(func(int, func(error)) {}))
		}, ErrUnsupportedTapKind},
		{"promise on sync", func(h *Hook[int, Void]) error {
			return h.TapPromise("x", func(int) Future[Maybe[Void]] { return nil })
		}, ErrUnsupportedTapKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSyncHook[int](nil)
			if err := tt.reg(h); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if h.IsUsed() {
				t.Error("failed registration left a tap behind")
			}
		})
	}
}

func TestTapNameTrimmed(t *testing.T) {
	h := NewSyncHook[int](nil)
	_ = h.Tap("  Plugin  ", Action(func(int) error { return nil }))
	if got := h.Taps()[0].Name; got != "Plugin" {
		t.Errorf("Name = %q, want %q", got, "Plugin")
	}
}

func TestCallOnAsyncKind(t *testing.T) {
	h := NewAsyncSeriesHook[int](nil)
	_, err := h.Call(0)
	if !errors.Is(err, ErrHookKindMismatch) {
		t.Errorf("Call() error = %v, want ErrHookKindMismatch", err)
	}
	if !errors.Is(err, ErrUnsupportedTapKind) {
		t.Errorf("Call() error = %v, want it to match ErrUnsupportedTapKind", err)
	}
}

func TestWithOptions(t *testing.T) {
	h := NewSyncHook[int](nil)
	early := h.WithOptions(WithStage(-10), WithMeta("plugin", "early"))

	_ = h.Tap("a", Action(func(int) error { return nil }))
	_ = early.Tap("b", Action(func(int) error { return nil }))
	_ = early.WithOptions(WithStage(20)).Tap("c", Action(func(int) error { return nil }))
	_ = early.Tap("d", Action(func(int) error { return nil }), WithStage(5))

	taps := h.Taps()
	if got := tapNames(taps); !slices.Equal(got, []string{"b", "a", "d", "c"}) {
		t.Fatalf("Taps() = %v, want [b a d c]", got)
	}
	if taps[0].Meta["plugin"] != "early" {
		t.Errorf("b Meta[plugin] = %v, want early", taps[0].Meta["plugin"])
	}
	if !early.IsUsed() {
		t.Error("view IsUsed() = false, want true")
	}
}

func TestIsUsed(t *testing.T) {
	h := NewSyncHook[int](nil)
	if h.IsUsed() {
		t.Error("empty hook IsUsed() = true")
	}
	h.Intercept(Interceptor[int, Void]{Name: "observer"})
	if !h.IsUsed() {
		t.Error("hook with interceptor IsUsed() = false")
	}
}

func TestHookString(t *testing.T) {
	h := NewSyncBailHook[int, int]([]string{"x"}, WithName("shouldEmit"))
	if got := h.String(); !strings.Contains(got, "SyncBailHook") || !strings.Contains(got, "shouldEmit") {
		t.Errorf("String() = %q", got)
	}
	if got := h.Args(); !slices.Equal(got, []string{"x"}) {
		t.Errorf("Args() = %v, want [x]", got)
	}
	if h.Kind() != KindSyncBail {
		t.Errorf("Kind() = %v, want %v", h.Kind(), KindSyncBail)
	}
}
