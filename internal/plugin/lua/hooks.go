package lua

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/tapline/internal/hook"
)

// ModuleName is the name scripts require to reach exposed hooks.
const ModuleName = "tapline.hooks"

// Codec converts a hook's argument to Lua and a tap's return value back.
// Nil fields fall back to ToLuaValue and DecodeValue.
type Codec[T, R any] struct {
	Encode func(L *lua.LState, arg T) lua.LValue
	Decode func(L *lua.LState, lv lua.LValue) (R, error)
}

func (c Codec[T, R]) encode(L *lua.LState, arg T) lua.LValue {
	if c.Encode != nil {
		return c.Encode(L, arg)
	}
	return ToLuaValue(L, arg)
}

func (c Codec[T, R]) decode(L *lua.LState, lv lua.LValue) (R, error) {
	if c.Decode != nil {
		return c.Decode(L, lv)
	}
	return DecodeValue[R](lv)
}

// DecodeValue converts lv with ToGoValue and asserts the result to R.
// Integral numbers convert to any integer R; Void accepts anything.
func DecodeValue[R any](lv lua.LValue) (R, error) {
	var zero R
	if _, ok := any(zero).(hook.Void); ok {
		return zero, nil
	}
	v := ToGoValue(lv)
	if r, ok := v.(R); ok {
		return r, nil
	}
	rt := reflect.TypeOf((*R)(nil)).Elem()
	if v != nil {
		rv := reflect.ValueOf(v)
		if rt.Kind() != reflect.String && rv.Type().ConvertibleTo(rt) {
			return rv.Convert(rt).Interface().(R), nil
		}
	}
	return zero, fmt.Errorf("cannot use lua %s as %s", lv.Type(), rt)
}

// HookInfo describes an exposed hook.
type HookInfo struct {
	Name  string
	Kind  hook.Kind
	Keyed bool
}

// binding is an exposed hook with its types erased.
type binding interface {
	info() HookInfo
	isUsed(key string) bool
	tap(env *moduleEnv, key string, req tapRequest) error
	intercept(env *moduleEnv, key string, fns *lua.LTable) error
}

type tapRequest struct {
	name  string
	fn    *lua.LFunction
	async bool
	opts  []hook.TapOption
}

// moduleEnv is the per-state view of a registry.
type moduleEnv struct {
	state *State
	exec  *Executor
}

// Registry holds the hooks scripts may tap, by name.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]binding
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]binding)}
}

func (r *Registry) add(name string, b binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[name]; ok {
		return fmt.Errorf("%w: %s", ErrHookExists, name)
	}
	r.bindings[name] = b
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) lookup(name string) (binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHookNotExposed, name)
	}
	return b, nil
}

// Hooks describes the exposed hooks in exposure order.
func (r *Registry) Hooks() []HookInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HookInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.bindings[name].info())
	}
	return out
}

// Expose makes target tappable from Lua as name. kind decides how Lua taps
// run: blocking kinds call Lua inline, async kinds go through the executor.
func Expose[T, R any](r *Registry, name string, kind hook.Kind, target hook.Tappable[T, R], codec Codec[T, R]) error {
	return r.add(name, &exposed[T, R]{
		name:  name,
		kind:  kind,
		codec: codec,
		resolve: func(string) hook.Tappable[T, R] {
			return target
		},
	})
}

// ExposeMap makes every hook of m tappable from Lua through tapFor and
// interceptFor, keyed by string.
func ExposeMap[T, R any](r *Registry, name string, kind hook.Kind, m *hook.HookMap[string, T, R], codec Codec[T, R]) error {
	return r.add(name, &exposed[T, R]{
		name:  name,
		kind:  kind,
		codec: codec,
		keyed: true,
		resolve: func(key string) hook.Tappable[T, R] {
			return m.For(key)
		},
		used: func(key string) bool {
			h, ok := m.Get(key)
			return ok && h.IsUsed()
		},
	})
}

type exposed[T, R any] struct {
	name    string
	kind    hook.Kind
	codec   Codec[T, R]
	keyed   bool
	resolve func(key string) hook.Tappable[T, R]
	used    func(key string) bool
}

func (e *exposed[T, R]) info() HookInfo {
	return HookInfo{Name: e.name, Kind: e.kind, Keyed: e.keyed}
}

func (e *exposed[T, R]) isUsed(key string) bool {
	if e.used != nil {
		return e.used(key)
	}
	return e.resolve(key).IsUsed()
}

// run calls fn with arg on L and decodes its first return value.
func (e *exposed[T, R]) run(L *lua.LState, fn *lua.LFunction, arg T) (hook.Maybe[R], error) {
	results, err := call(L, fn, e.codec.encode(L, arg))
	if err != nil {
		return hook.None[R](), err
	}
	if len(results) == 0 || results[0] == lua.LNil {
		return hook.None[R](), nil
	}
	v, err := e.codec.decode(L, results[0])
	if err != nil {
		return hook.None[R](), err
	}
	return hook.Some(v), nil
}

func (e *exposed[T, R]) tap(env *moduleEnv, key string, req tapRequest) error {
	target := e.resolve(key)
	if e.kind.Blocking() && !req.async {
		return target.Tap(req.name, func(arg T) (hook.Maybe[R], error) {
			var out hook.Maybe[R]
			err := env.state.Do(context.Background(), func(L *lua.LState) error {
				var err error
				out, err = e.run(L, req.fn, arg)
				return err
			})
			return out, err
		}, req.opts...)
	}
	return target.TapPromise(req.name, func(arg T) hook.Future[hook.Maybe[R]] {
		return Submit(context.Background(), env.exec, func(L *lua.LState) (hook.Maybe[R], error) {
			return e.run(L, req.fn, arg)
		})
	}, req.opts...)
}

func (e *exposed[T, R]) intercept(env *moduleEnv, key string, fns *lua.LTable) error {
	callLua := func(field string, args func(L *lua.LState) []lua.LValue) {
		fn, ok := TableFunc(fns, field)
		if !ok {
			return
		}
		err := env.state.Do(context.Background(), func(L *lua.LState) error {
			_, err := call(L, fn, args(L)...)
			return err
		})
		if err != nil {
			env.state.logger.Warn("lua interceptor failed",
				"hook", e.name,
				"field", field,
				"error", err,
			)
		}
	}

	ic := hook.Interceptor[T, R]{Name: "lua:" + env.state.Name()}
	if _, ok := TableFunc(fns, "call"); ok {
		ic.Call = func(arg T) {
			callLua("call", func(L *lua.LState) []lua.LValue {
				return []lua.LValue{e.codec.encode(L, arg)}
			})
		}
	}
	if _, ok := TableFunc(fns, "tap"); ok {
		ic.Tap = func(t hook.Tap[T, R]) {
			callLua("tap", func(L *lua.LState) []lua.LValue {
				info := L.NewTable()
				info.RawSetString("name", lua.LString(t.Name))
				info.RawSetString("stage", lua.LNumber(t.Stage))
				info.RawSetString("kind", lua.LString(t.Kind.String()))
				return []lua.LValue{info}
			})
		}
	}
	if _, ok := TableFunc(fns, "error"); ok {
		ic.Error = func(err error) {
			callLua("error", func(L *lua.LState) []lua.LValue {
				return []lua.LValue{lua.LString(err.Error())}
			})
		}
	}
	if _, ok := TableFunc(fns, "result"); ok {
		ic.Result = func(r R) {
			callLua("result", func(L *lua.LState) []lua.LValue {
				return []lua.LValue{ToLuaValue(L, r)}
			})
		}
	}
	if _, ok := TableFunc(fns, "done"); ok {
		ic.Done = func() {
			callLua("done", func(*lua.LState) []lua.LValue { return nil })
		}
	}
	e.resolve(key).Intercept(ic)
	return nil
}

// Install makes the registry available to scripts on state through
// require(ModuleName). exec runs Lua taps registered on async hooks and
// must be running.
func (r *Registry) Install(state *State, exec *Executor) error {
	env := &moduleEnv{state: state, exec: exec}
	return state.PreloadModule(ModuleName, func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"tap":          r.luaTap(env, false, false),
			"tapAsync":     r.luaTap(env, true, false),
			"tapFor":       r.luaTap(env, false, true),
			"tapAsyncFor":  r.luaTap(env, true, true),
			"intercept":    r.luaIntercept(env, false),
			"interceptFor": r.luaIntercept(env, true),
			"isUsed":       r.luaIsUsed,
			"list":         r.luaList,
		})
		L.Push(mod)
		return 1
	})
}

// luaTap implements hooks.tap(hook, spec, fn) and, when keyed,
// hooks.tapFor(hook, key, spec, fn). spec is a tap name or a table with
// name, stage and before fields.
func (r *Registry) luaTap(env *moduleEnv, async, keyed bool) lua.LGFunction {
	return func(L *lua.LState) int {
		b, key, next := r.target(L, keyed)
		req, err := parseTapSpec(L.Get(next))
		if err != nil {
			L.ArgError(next, err.Error())
			return 0
		}
		req.fn = L.CheckFunction(next + 1)
		req.async = async
		if err := b.tap(env, key, req); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}
}

// luaIntercept implements hooks.intercept(hook, fns) and
// hooks.interceptFor(hook, key, fns).
func (r *Registry) luaIntercept(env *moduleEnv, keyed bool) lua.LGFunction {
	return func(L *lua.LState) int {
		b, key, next := r.target(L, keyed)
		fns := L.CheckTable(next)
		if err := b.intercept(env, key, fns); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}
}

// target resolves the hook named by the first argument, and its key when
// keyed. It returns the index of the next argument.
func (r *Registry) target(L *lua.LState, keyed bool) (binding, string, int) {
	name := L.CheckString(1)
	b, err := r.lookup(name)
	if err != nil {
		L.ArgError(1, err.Error())
		return nil, "", 0
	}
	if b.info().Keyed != keyed {
		if keyed {
			L.ArgError(1, fmt.Sprintf("hook %s is not keyed", name))
		} else {
			L.ArgError(1, fmt.Sprintf("hook %s is keyed, use the For variant", name))
		}
		return nil, "", 0
	}
	if keyed {
		return b, L.CheckString(2), 3
	}
	return b, "", 2
}

func parseTapSpec(lv lua.LValue) (tapRequest, error) {
	switch v := lv.(type) {
	case lua.LString:
		return tapRequest{name: string(v)}, nil
	case *lua.LTable:
		name, _ := TableString(v, "name")
		req := tapRequest{name: name}
		if stage, ok := TableInt(v, "stage"); ok {
			req.opts = append(req.opts, hook.WithStage(stage))
		}
		before, err := TableStrings(v, "before")
		if err != nil {
			return tapRequest{}, err
		}
		if len(before) > 0 {
			req.opts = append(req.opts, hook.WithBefore(before...))
		}
		return req, nil
	default:
		return tapRequest{}, fmt.Errorf("tap spec must be a string or table, got %s", lv.Type())
	}
}

// luaIsUsed implements hooks.isUsed(hook [, key]).
func (r *Registry) luaIsUsed(L *lua.LState) int {
	b, err := r.lookup(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(lua.LBool(b.isUsed(L.OptString(2, ""))))
	return 1
}

// luaList implements hooks.list(), returning {name, kind, keyed} entries.
func (r *Registry) luaList(L *lua.LState) int {
	infos := r.Hooks()
	t := L.CreateTable(len(infos), 0)
	for i, info := range infos {
		entry := L.NewTable()
		entry.RawSetString("name", lua.LString(info.Name))
		entry.RawSetString("kind", lua.LString(info.Kind.String()))
		entry.RawSetString("keyed", lua.LBool(info.Keyed))
		t.RawSetInt(i+1, entry)
	}
	L.Push(t)
	return 1
}
