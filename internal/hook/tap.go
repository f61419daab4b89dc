package hook

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// SyncFunc is the body of a sync tap.
type SyncFunc[T, R any] func(arg T) (Maybe[R], error)

// AsyncFunc is the body of a callback-style tap. The tap must call done
// exactly once; later calls are ignored.
type AsyncFunc[T, R any] func(arg T, done Callback[R])

// PromiseFunc is the body of a future-style tap.
type PromiseFunc[T, R any] func(arg T) Future[Maybe[R]]

// Callback receives the terminal outcome of an invocation or async tap.
type Callback[R any] func(err error, result Maybe[R])

// Action adapts fn into a SyncFunc that never produces a result.
func Action[T any](fn func(T) error) SyncFunc[T, Void] {
	return func(arg T) (Maybe[Void], error) {
		return None[Void](), fn(arg)
	}
}

// AsyncAction adapts fn into an AsyncFunc that never produces a result.
func AsyncAction[T any](fn func(arg T, done func(error))) AsyncFunc[T, Void] {
	return func(arg T, cb Callback[Void]) {
		fn(arg, func(err error) {
			cb(err, None[Void]())
		})
	}
}

// Replace adapts fn into a waterfall tap that always overrides the value.
func Replace[T any](fn func(T) (T, error)) SyncFunc[T, T] {
	return func(arg T) (Maybe[T], error) {
		v, err := fn(arg)
		if err != nil {
			return None[T](), err
		}
		return Some(v), nil
	}
}

// Tap is one registered callback. Exactly one of Sync, Async or Promise is
// set, matching Kind. A Tap is immutable once inserted into a hook.
type Tap[T, R any] struct {
	Name    string
	Before  []string
	Stage   int32
	Kind    TapKind
	Meta    map[string]any
	Sync    SyncFunc[T, R]
	Async   AsyncFunc[T, R]
	Promise PromiseFunc[T, R]
}

func (t *Tap[T, R]) validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrMissingTapName
	}
	for _, name := range t.Before {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty before entry in tap %q", ErrInvalidTapOptions, t.Name)
		}
	}
	var ok bool
	switch t.Kind {
	case SyncTap:
		ok = t.Sync != nil
	case AsyncTap:
		ok = t.Async != nil
	case PromiseTap:
		ok = t.Promise != nil
	default:
		return fmt.Errorf("%w: unknown tap kind %d", ErrInvalidTapOptions, t.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: tap %q has no %s body", ErrInvalidTapOptions, t.Name, t.Kind)
	}
	return nil
}

func (t Tap[T, R]) clone() Tap[T, R] {
	t.Before = slices.Clone(t.Before)
	t.Meta = maps.Clone(t.Meta)
	return t
}

// TapOptions holds registration options.
type TapOptions struct {
	Stage  int64
	Before []string
	Meta   map[string]any
}

// TapOption configures a tap registration.
type TapOption func(*TapOptions)

// WithStage sets the tap stage. Values outside the int32 domain saturate.
func WithStage(stage int64) TapOption {
	return func(o *TapOptions) {
		o.Stage = stage
	}
}

// WithBefore names taps that must run after this one.
// A later WithBefore replaces an earlier one.
func WithBefore(names ...string) TapOption {
	return func(o *TapOptions) {
		o.Before = slices.Clone(names)
	}
}

// WithMeta attaches an additional registration option.
func WithMeta(key string, value any) TapOption {
	return func(o *TapOptions) {
		if o.Meta == nil {
			o.Meta = make(map[string]any)
		}
		o.Meta[key] = value
	}
}

func applyTapOptions(opts []TapOption) TapOptions {
	var o TapOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// insertTap returns a new slice with item placed according to stage and
// before constraints. taps is not modified.
func insertTap[T, R any](taps []Tap[T, R], item Tap[T, R]) []Tap[T, R] {
	var before map[string]struct{}
	if len(item.Before) > 0 {
		before = make(map[string]struct{}, len(item.Before))
		for _, name := range item.Before {
			before[name] = struct{}{}
		}
	}

	out := make([]Tap[T, R], len(taps)+1)
	copy(out, taps)

	i := len(taps)
	for i > 0 {
		i--
		x := out[i]
		out[i+1] = x
		if len(before) > 0 {
			delete(before, x.Name)
			continue
		}
		if x.Stage > item.Stage {
			continue
		}
		i++
		break
	}
	out[i] = item
	return out
}
