package app

import (
	"errors"
	"fmt"
)

// Errors returned by the pipeline.
var (
	ErrPipelineClosed = errors.New("pipeline is closed")
	ErrNoInputs       = errors.New("no inputs")
	ErrDuplicateAsset = errors.New("duplicate asset")
)

// PhaseError reports the build phase that failed.
type PhaseError struct {
	Phase string
	Input string
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s %s: %v", e.Phase, e.Input, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
