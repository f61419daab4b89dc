package hook

// Void is the result type of hooks that produce no value.
type Void = struct{}

// Maybe is an optional value returned across the tap boundary.
// None means "no result"; Some of a zero value is still a result.
type Maybe[T any] struct {
	value T
	ok    bool
}

// Some returns a Maybe holding v.
func Some[T any](v T) Maybe[T] {
	return Maybe[T]{value: v, ok: true}
}

// None returns an empty Maybe.
func None[T any]() Maybe[T] {
	return Maybe[T]{}
}

// Get returns the value and whether it is present.
func (m Maybe[T]) Get() (T, bool) {
	return m.value, m.ok
}

// IsSome reports whether a value is present.
func (m Maybe[T]) IsSome() bool {
	return m.ok
}

// OrElse returns the value, or def when absent.
func (m Maybe[T]) OrElse(def T) T {
	if m.ok {
		return m.value
	}
	return def
}
