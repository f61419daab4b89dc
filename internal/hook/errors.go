package hook

import (
	"errors"
	"fmt"
)

// Registration and invocation errors.
var (
	// ErrMissingTapName indicates a tap was registered without a usable name.
	ErrMissingTapName = errors.New("missing name for tap")

	// ErrInvalidTapOptions indicates a malformed registration payload.
	ErrInvalidTapOptions = errors.New("invalid tap options")

	// ErrUnsupportedTapKind indicates an async or promise registration on a
	// sync-only hook.
	ErrUnsupportedTapKind = errors.New("unsupported tap kind")

	// ErrHookKindMismatch indicates a blocking call on a hook kind that has
	// no blocking implementation. It also matches ErrUnsupportedTapKind.
	ErrHookKindMismatch = fmt.Errorf("hook has no blocking call: %w", ErrUnsupportedTapKind)

	// ErrWaterfallRequiresArgument indicates a waterfall hook was declared
	// without arguments.
	ErrWaterfallRequiresArgument = errors.New("waterfall hooks must have at least one argument")

	// ErrTapDidNotReturnFuture indicates a promise tap returned a nil future.
	ErrTapDidNotReturnFuture = errors.New("tap did not return a future")

	// ErrTapExecution matches every error produced inside a tap body.
	ErrTapExecution = errors.New("tap execution failed")

	// ErrTapPanic indicates a tap body panicked.
	ErrTapPanic = errors.New("tap panicked")
)

// TapError wraps an error produced by a tap body.
type TapError struct {
	Hook  string
	Tap   string
	Err   error
	Panic any    // recovered value when the tap panicked
	Stack []byte // stack captured at the panic site
}

// Error implements the error interface.
func (e *TapError) Error() string {
	if e.Hook == "" {
		return fmt.Sprintf("tap %q: %v", e.Tap, e.Err)
	}
	return fmt.Sprintf("hook %q: tap %q: %v", e.Hook, e.Tap, e.Err)
}

// Unwrap returns the underlying error.
func (e *TapError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTapExecution.
func (e *TapError) Is(target error) bool {
	return target == ErrTapExecution
}

// Panicked reports whether the tap panicked.
func (e *TapError) Panicked() bool {
	return e.Panic != nil
}
