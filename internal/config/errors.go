package config

import "errors"

// Validation errors.
var (
	ErrInvalidLogLevel  = errors.New("config: invalid log level")
	ErrInvalidLogFormat = errors.New("config: invalid log format")
	ErrNegativeDuration = errors.New("config: duration must not be negative")
	ErrInvalidDuration  = errors.New("config: invalid duration")
	ErrConfigNotFound   = errors.New("config: file not found")
)
