package hook

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Tappable is the registration surface plugins consume.
// It is implemented by *Hook, *MultiHook and WithOptions views.
type Tappable[T, R any] interface {
	Tap(name string, fn SyncFunc[T, R], opts ...TapOption) error
	TapAsync(name string, fn AsyncFunc[T, R], opts ...TapOption) error
	TapPromise(name string, fn PromiseFunc[T, R], opts ...TapOption) error
	Intercept(ic Interceptor[T, R])
	WithOptions(opts ...TapOption) Tappable[T, R]
	IsUsed() bool
}

// Hook is a typed extension point.
type Hook[T, R any] struct {
	name   string
	args   []string
	kind   Kind
	runner runner[T, R]
	thread *threading[T, R]

	mu           sync.RWMutex
	taps         []Tap[T, R]
	interceptors interceptors[T, R]
}

// threading converts between the argument and result of waterfall hooks,
// where T and R are the same type.
type threading[T, R any] struct {
	toArg    func(R) T
	toResult func(T) R
}

func identity[T any](v T) T { return v }

// HookOption configures a Hook.
type HookOption func(*hookConfig)

type hookConfig struct {
	name string
}

// WithName sets the hook's debug name.
func WithName(name string) HookOption {
	return func(c *hookConfig) {
		c.name = name
	}
}

func newHook[T, R any](kind Kind, args []string, opts []HookOption) *Hook[T, R] {
	var cfg hookConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &Hook[T, R]{
		name: cfg.name,
		args: slices.Clone(args),
		kind: kind,
	}
	if kind == KindAsyncParallel {
		h.runner = parallelRunner[T, R]{}
	} else {
		h.runner = seriesRunner[T, R]{}
	}
	return h
}

func newWaterfallHook[T any](kind Kind, args []string, opts []HookOption) (*Hook[T, T], error) {
	if len(args) == 0 {
		return nil, ErrWaterfallRequiresArgument
	}
	h := newHook[T, T](kind, args, opts)
	h.thread = &threading[T, T]{toArg: identity[T], toResult: identity[T]}
	return h, nil
}

// NewSyncHook creates a KindSync hook.
func NewSyncHook[T any](args []string, opts ...HookOption) *Hook[T, Void] {
	return newHook[T, Void](KindSync, args, opts)
}

// NewSyncBailHook creates a KindSyncBail hook.
func NewSyncBailHook[T, R any](args []string, opts ...HookOption) *Hook[T, R] {
	return newHook[T, R](KindSyncBail, args, opts)
}

// NewSyncWaterfallHook creates a KindSyncWaterfall hook.
// It returns ErrWaterfallRequiresArgument if args is empty.
func NewSyncWaterfallHook[T any](args []string, opts ...HookOption) (*Hook[T, T], error) {
	return newWaterfallHook[T](KindSyncWaterfall, args, opts)
}

// NewAsyncParallelHook creates a KindAsyncParallel hook.
func NewAsyncParallelHook[T any](args []string, opts ...HookOption) *Hook[T, Void] {
	return newHook[T, Void](KindAsyncParallel, args, opts)
}

// NewAsyncSeriesHook creates a KindAsyncSeries hook.
func NewAsyncSeriesHook[T any](args []string, opts ...HookOption) *Hook[T, Void] {
	return newHook[T, Void](KindAsyncSeries, args, opts)
}

// NewAsyncSeriesBailHook creates a KindAsyncSeriesBail hook.
func NewAsyncSeriesBailHook[T, R any](args []string, opts ...HookOption) *Hook[T, R] {
	return newHook[T, R](KindAsyncSeriesBail, args, opts)
}

// NewAsyncSeriesWaterfallHook creates a KindAsyncSeriesWaterfall hook.
// It returns ErrWaterfallRequiresArgument if args is empty.
func NewAsyncSeriesWaterfallHook[T any](args []string, opts ...HookOption) (*Hook[T, T], error) {
	return newWaterfallHook[T](KindAsyncSeriesWaterfall, args, opts)
}

// Name returns the hook's debug name.
func (h *Hook[T, R]) Name() string {
	return h.name
}

// Args returns the declared argument names.
func (h *Hook[T, R]) Args() []string {
	return slices.Clone(h.args)
}

// Kind returns the hook's execution discipline.
func (h *Hook[T, R]) Kind() Kind {
	return h.kind
}

// Taps returns the taps in execution order.
func (h *Hook[T, R]) Taps() []Tap[T, R] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.taps)
}

// InterceptorCount returns the number of installed interceptors.
func (h *Hook[T, R]) InterceptorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.interceptors)
}

// IsUsed reports whether the hook has any taps or interceptors.
func (h *Hook[T, R]) IsUsed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.taps) > 0 || len(h.interceptors) > 0
}

// Tap registers a sync tap.
func (h *Hook[T, R]) Tap(name string, fn SyncFunc[T, R], opts ...TapOption) error {
	return h.register(name, SyncTap, opts, func(t *Tap[T, R]) { t.Sync = fn })
}

// TapAsync registers a callback-style tap. It fails with
// ErrUnsupportedTapKind on sync kinds.
func (h *Hook[T, R]) TapAsync(name string, fn AsyncFunc[T, R], opts ...TapOption) error {
	return h.register(name, AsyncTap, opts, func(t *Tap[T, R]) { t.Async = fn })
}

// TapPromise registers a future-style tap. It fails with
// ErrUnsupportedTapKind on sync kinds.
func (h *Hook[T, R]) TapPromise(name string, fn PromiseFunc[T, R], opts ...TapOption) error {
	return h.register(name, PromiseTap, opts, func(t *Tap[T, R]) { t.Promise = fn })
}

func (h *Hook[T, R]) register(name string, kind TapKind, opts []TapOption, set func(*Tap[T, R])) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrMissingTapName
	}
	if err := h.checkTapKind(kind); err != nil {
		return err
	}

	o := applyTapOptions(opts)
	tap := Tap[T, R]{
		Name:   name,
		Before: o.Before,
		Stage:  SafeStage(o.Stage),
		Kind:   kind,
		Meta:   o.Meta,
	}
	set(&tap)
	if err := tap.validate(); err != nil {
		return err
	}

	h.mu.RLock()
	ics := h.interceptors
	h.mu.RUnlock()

	for i := range ics {
		if ics[i].Register == nil {
			continue
		}
		next, err := ics[i].Register(tap.clone())
		if err != nil {
			return err
		}
		next.Name = strings.TrimSpace(next.Name)
		if err := next.validate(); err != nil {
			return err
		}
		if err := h.checkTapKind(next.Kind); err != nil {
			return err
		}
		tap = next
	}

	h.mu.Lock()
	h.taps = insertTap(h.taps, tap.clone())
	h.mu.Unlock()
	return nil
}

func (h *Hook[T, R]) checkTapKind(kind TapKind) error {
	if kind != SyncTap && h.kind.Blocking() {
		return fmt.Errorf("%w: %s tap on %s", ErrUnsupportedTapKind, kind, h.kind)
	}
	return nil
}

// Intercept installs an interceptor. Its Register handler sees only taps
// registered after installation; taps already on the hook keep their
// original bodies and are not passed through it.
func (h *Hook[T, R]) Intercept(ic Interceptor[T, R]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := make(interceptors[T, R], len(h.interceptors), len(h.interceptors)+1)
	copy(next, h.interceptors)
	h.interceptors = append(next, ic)
}

func (h *Hook[T, R]) snapshotInterceptors() interceptors[T, R] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.interceptors
}

// WithOptions returns a view that applies opts before the options of every
// registration made through it.
func (h *Hook[T, R]) WithOptions(opts ...TapOption) Tappable[T, R] {
	return &optionsView[T, R]{target: h, defaults: slices.Clone(opts)}
}

// QueryStageRange returns a view over the taps whose stage lies in r.
// The tap set is captured now; later registrations are not observed.
func (h *Hook[T, R]) QueryStageRange(r StageRange) *QueriedHook[T, R] {
	h.mu.RLock()
	taps := h.taps
	h.mu.RUnlock()

	var inRange []Tap[T, R]
	for _, t := range taps {
		if r.Contains(t.Stage) {
			inRange = append(inRange, t)
		}
	}
	return &QueriedHook[T, R]{hook: h, rng: r, taps: inRange}
}

// Call invokes a sync hook and blocks until it completes. It returns
// ErrHookKindMismatch on async kinds.
func (h *Hook[T, R]) Call(arg T) (Maybe[R], error) {
	return h.QueryStageRange(AllStages).Call(arg)
}

// CallAsync invokes the hook and reports the outcome to cb.
func (h *Hook[T, R]) CallAsync(arg T, cb Callback[R]) {
	h.QueryStageRange(AllStages).CallAsync(arg, cb)
}

// Promise invokes the hook and returns a promise of its outcome.
func (h *Hook[T, R]) Promise(arg T) *Promise[Maybe[R]] {
	return h.QueryStageRange(AllStages).Promise(arg)
}

// String returns a short description for diagnostics.
func (h *Hook[T, R]) String() string {
	if h.name == "" {
		return h.kind.String()
	}
	return fmt.Sprintf("%s(%s)", h.kind, h.name)
}

type optionsView[T, R any] struct {
	target   Tappable[T, R]
	defaults []TapOption
}

func (v *optionsView[T, R]) merge(opts []TapOption) []TapOption {
	out := make([]TapOption, 0, len(v.defaults)+len(opts))
	out = append(out, v.defaults...)
	return append(out, opts...)
}

func (v *optionsView[T, R]) Tap(name string, fn SyncFunc[T, R], opts ...TapOption) error {
	return v.target.Tap(name, fn, v.merge(opts)...)
}

func (v *optionsView[T, R]) TapAsync(name string, fn AsyncFunc[T, R], opts ...TapOption) error {
	return v.target.TapAsync(name, fn, v.merge(opts)...)
}

func (v *optionsView[T, R]) TapPromise(name string, fn PromiseFunc[T, R], opts ...TapOption) error {
	return v.target.TapPromise(name, fn, v.merge(opts)...)
}

func (v *optionsView[T, R]) Intercept(ic Interceptor[T, R]) {
	v.target.Intercept(ic)
}

func (v *optionsView[T, R]) WithOptions(opts ...TapOption) Tappable[T, R] {
	return &optionsView[T, R]{target: v.target, defaults: v.merge(opts)}
}

func (v *optionsView[T, R]) IsUsed() bool {
	return v.target.IsUsed()
}
