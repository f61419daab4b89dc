package lua

import "errors"

// Errors for Lua plugin execution.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a script exceeds its time budget.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrExecutorClosed is returned when submitting to a closed executor.
	ErrExecutorClosed = errors.New("lua executor is closed")

	// ErrHookNotExposed is returned when a script names an unknown hook.
	ErrHookNotExposed = errors.New("hook not exposed")

	// ErrHookExists is returned when a hook name is exposed twice.
	ErrHookExists = errors.New("hook already exposed")
)
