package app

import (
	"fmt"
	"log/slog"

	"github.com/dshills/tapline/internal/hook"
	"github.com/dshills/tapline/internal/hooklog"
	"github.com/dshills/tapline/internal/hooktel"
	"github.com/dshills/tapline/internal/hooktrace"
	plua "github.com/dshills/tapline/internal/plugin/lua"
)

// Hook names as plugins see them.
const (
	HookInitialize    = "initialize"
	HookResolveFor    = "resolveFor"
	HookTransform     = "transform"
	HookProcessAssets = "processAssets"
	HookEmit          = "emit"
	HookAfterEmit     = "afterEmit"
	HookFinished      = "finished"
	HookDone          = "done"
)

// Hooks is the set of hooks a build drives. A Pipeline builds a fresh set
// on every reload.
type Hooks struct {
	Initialize    *hook.Hook[*Session, hook.Void]
	ResolveFor    *hook.HookMap[string, *ResolveRequest, string]
	Transform     *hook.Hook[*Source, *Source]
	ProcessAssets *hook.Hook[*Assets, hook.Void]
	Emit          *hook.Hook[*Assets, hook.Void]
	AfterEmit     *hook.Hook[*Stats, hook.Void]
	Finished      *hook.Hook[*Stats, hook.Void]
	Done          *hook.MultiHook[*Stats, hook.Void]
}

// observers selects the interceptors attached to every hook.
type observers struct {
	logger    *slog.Logger // nil disables hook logging
	telemetry bool
	recorder  *hooktrace.Recorder
}

func observe[T, R any](h *hook.Hook[T, R], o observers) {
	name := h.Name()
	if o.logger != nil {
		hooklog.Attach(o.logger, h)
	}
	if o.telemetry {
		h.Intercept(hooktel.Tracing[T, R](name))
		h.Intercept(hooktel.Metrics[T, R](name))
	}
	if o.recorder != nil {
		h.Intercept(hooktrace.Interceptor[T, R](o.recorder, name))
	}
}

// newHooks creates the hook set with the given observers attached.
func newHooks(o observers) (*Hooks, error) {
	transform, err := hook.NewSyncWaterfallHook[*Source]([]string{"source"}, hook.WithName(HookTransform))
	if err != nil {
		return nil, err
	}

	h := &Hooks{
		Initialize: hook.NewSyncHook[*Session]([]string{"session"}, hook.WithName(HookInitialize)),
		ResolveFor: hook.NewHookMap(func(moduleType string) *hook.Hook[*ResolveRequest, string] {
			return hook.NewAsyncSeriesBailHook[*ResolveRequest, string](
				[]string{"request"},
				hook.WithName(fmt.Sprintf("%s[%s]", HookResolveFor, moduleType)),
			)
		}, hook.WithName(HookResolveFor)),
		Transform:     transform,
		ProcessAssets: hook.NewAsyncSeriesHook[*Assets]([]string{"assets"}, hook.WithName(HookProcessAssets)),
		Emit:          hook.NewAsyncParallelHook[*Assets]([]string{"assets"}, hook.WithName(HookEmit)),
		AfterEmit:     hook.NewAsyncSeriesHook[*Stats]([]string{"stats"}, hook.WithName(HookAfterEmit)),
		Finished:      hook.NewAsyncSeriesHook[*Stats]([]string{"stats"}, hook.WithName(HookFinished)),
	}
	h.Done = hook.NewMultiHook[*Stats, hook.Void](h.AfterEmit, h.Finished)

	observe(h.Initialize, o)
	observe(h.Transform, o)
	observe(h.ProcessAssets, o)
	observe(h.Emit, o)
	observe(h.AfterEmit, o)
	observe(h.Finished, o)
	h.ResolveFor.Intercept(hook.HookMapInterceptor[string, *ResolveRequest, string]{
		Name: "observe",
		Factory: func(_ string, created *hook.Hook[*ResolveRequest, string]) *hook.Hook[*ResolveRequest, string] {
			observe(created, o)
			return created
		},
	})
	return h, nil
}

// expose makes every hook tappable from Lua.
func (h *Hooks) expose(reg *plua.Registry) error {
	exposures := []error{
		plua.Expose(reg, HookInitialize, hook.KindSync, hook.Tappable[*Session, hook.Void](h.Initialize), sessionCodec),
		plua.ExposeMap(reg, HookResolveFor, hook.KindAsyncSeriesBail, h.ResolveFor, resolveCodec),
		plua.Expose(reg, HookTransform, hook.KindSyncWaterfall, hook.Tappable[*Source, *Source](h.Transform), sourceCodec),
		plua.Expose(reg, HookProcessAssets, hook.KindAsyncSeries, hook.Tappable[*Assets, hook.Void](h.ProcessAssets), assetsCodec),
		plua.Expose(reg, HookEmit, hook.KindAsyncParallel, hook.Tappable[*Assets, hook.Void](h.Emit), assetsCodec),
		plua.Expose(reg, HookAfterEmit, hook.KindAsyncSeries, hook.Tappable[*Stats, hook.Void](h.AfterEmit), statsCodec),
		plua.Expose(reg, HookFinished, hook.KindAsyncSeries, hook.Tappable[*Stats, hook.Void](h.Finished), statsCodec),
		plua.Expose(reg, HookDone, hook.KindAsyncSeries, hook.Tappable[*Stats, hook.Void](h.Done), statsCodec),
	}
	for _, err := range exposures {
		if err != nil {
			return err
		}
	}
	return nil
}

// HookDescription describes one hook and its taps in call order.
type HookDescription struct {
	Name  string
	Kind  hook.Kind
	Used  bool
	Taps  []TapDescription
	Keyed bool
	Key   string
}

// TapDescription describes one registered tap.
type TapDescription struct {
	Name   string
	Stage  int32
	Kind   hook.TapKind
	Before []string
}

func describe[T, R any](h *hook.Hook[T, R]) HookDescription {
	taps := h.Taps()
	d := HookDescription{
		Name: h.Name(),
		Kind: h.Kind(),
		Used: h.IsUsed(),
		Taps: make([]TapDescription, 0, len(taps)),
	}
	for _, t := range taps {
		d.Taps = append(d.Taps, TapDescription{Name: t.Name, Stage: t.Stage, Kind: t.Kind, Before: t.Before})
	}
	return d
}

// Describe lists the hooks in build order. Each created resolveFor hook
// is listed under its module type.
func (h *Hooks) Describe() []HookDescription {
	out := []HookDescription{describe(h.Initialize)}
	for _, key := range h.ResolveFor.Keys() {
		r, _ := h.ResolveFor.Get(key)
		d := describe(r)
		d.Name = HookResolveFor
		d.Keyed = true
		d.Key = key
		out = append(out, d)
	}
	return append(out,
		describe(h.Transform),
		describe(h.ProcessAssets),
		describe(h.Emit),
		describe(h.AfterEmit),
		describe(h.Finished),
	)
}
