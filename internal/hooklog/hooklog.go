// Package hooklog logs hook activity through log/slog.
package hooklog

import (
	"log/slog"
	"time"

	"github.com/dshills/tapline/internal/hook"
)

// Interceptor returns an interceptor that logs registrations, invocations,
// tap timings, results and failures of the named hook.
//
// Tap timings are only recorded for taps registered after the interceptor
// is installed.
func Interceptor[T, R any](logger *slog.Logger, hookName string) hook.Interceptor[T, R] {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("hook", hookName))

	return hook.Interceptor[T, R]{
		Name: "hooklog",
		Register: func(tap hook.Tap[T, R]) (hook.Tap[T, R], error) {
			logger.Debug("tap registered",
				slog.String("tap", tap.Name),
				slog.Int("stage", int(tap.Stage)),
				slog.String("kind", tap.Kind.String()),
				slog.Any("before", tap.Before),
			)
			return hook.Around(tap, func(t hook.Tap[T, R]) func(error) {
				start := time.Now()
				return func(err error) {
					elapsed := time.Since(start)
					if err != nil {
						logger.Warn("tap failed",
							slog.String("tap", t.Name),
							slog.Duration("elapsed", elapsed),
							slog.String("error", err.Error()),
						)
						return
					}
					logger.Debug("tap completed",
						slog.String("tap", t.Name),
						slog.Duration("elapsed", elapsed),
					)
				}
			}), nil
		},
		Call: func(T) {
			logger.Debug("hook called")
		},
		Error: func(err error) {
			logger.Error("hook failed", slog.String("error", err.Error()))
		},
		Result: func(r R) {
			logger.Debug("hook result", slog.Any("result", r))
		},
		Done: func() {
			logger.Debug("hook done")
		},
	}
}

// Attach installs Interceptor on h, named after the hook.
func Attach[T, R any](logger *slog.Logger, h *hook.Hook[T, R]) {
	h.Intercept(Interceptor[T, R](logger, h.Name()))
}
