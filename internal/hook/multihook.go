package hook

import "slices"

// MultiHook replays registrations against several like-shaped hooks.
// It is not a hook itself and cannot be invoked.
type MultiHook[T, R any] struct {
	hooks []Tappable[T, R]
}

// NewMultiHook creates a MultiHook over hooks, in order.
func NewMultiHook[T, R any](hooks ...Tappable[T, R]) *MultiHook[T, R] {
	return &MultiHook[T, R]{hooks: slices.Clone(hooks)}
}

// Hooks returns the members in order.
func (m *MultiHook[T, R]) Hooks() []Tappable[T, R] {
	return slices.Clone(m.hooks)
}

// Tap registers fn on every member. It stops at the first error; members
// before the failing one keep their registration.
func (m *MultiHook[T, R]) Tap(name string, fn SyncFunc[T, R], opts ...TapOption) error {
	for _, h := range m.hooks {
		if err := h.Tap(name, fn, opts...); err != nil {
			return err
		}
	}
	return nil
}

// TapAsync registers fn on every member.
func (m *MultiHook[T, R]) TapAsync(name string, fn AsyncFunc[T, R], opts ...TapOption) error {
	for _, h := range m.hooks {
		if err := h.TapAsync(name, fn, opts...); err != nil {
			return err
		}
	}
	return nil
}

// TapPromise registers fn on every member.
func (m *MultiHook[T, R]) TapPromise(name string, fn PromiseFunc[T, R], opts ...TapOption) error {
	for _, h := range m.hooks {
		if err := h.TapPromise(name, fn, opts...); err != nil {
			return err
		}
	}
	return nil
}

// Intercept installs ic on every member.
func (m *MultiHook[T, R]) Intercept(ic Interceptor[T, R]) {
	for _, h := range m.hooks {
		h.Intercept(ic)
	}
}

// IsUsed reports whether any member is used.
func (m *MultiHook[T, R]) IsUsed() bool {
	for _, h := range m.hooks {
		if h.IsUsed() {
			return true
		}
	}
	return false
}

// WithOptions returns a MultiHook over each member's WithOptions view.
func (m *MultiHook[T, R]) WithOptions(opts ...TapOption) Tappable[T, R] {
	views := make([]Tappable[T, R], len(m.hooks))
	for i, h := range m.hooks {
		views[i] = h.WithOptions(opts...)
	}
	return &MultiHook[T, R]{hooks: views}
}
