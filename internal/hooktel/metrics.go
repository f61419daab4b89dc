package hooktel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/tapline/internal/hook"
)

// Metrics returns an interceptor that records hook metrics with the global
// meter provider.
func Metrics[T, R any](hookName string) hook.Interceptor[T, R] {
	return MetricsWithMeter[T, R](otel.Meter(instrumentationName), hookName)
}

// MetricsWithMeter returns an interceptor that records hook metrics with
// meter.
//
// Instruments:
//   - tapline.hook.calls (Int64Counter): invocations, by hook
//   - tapline.hook.errors (Int64Counter): failed invocations, by hook
//   - tapline.hook.results (Int64Counter): bail and waterfall results, by hook
//   - tapline.tap.executions (Int64Counter): tap runs, by hook, tap and status
//   - tapline.tap.duration (Float64Histogram): tap run time in seconds,
//     by hook, tap and status
func MetricsWithMeter[T, R any](meter metric.Meter, hookName string) hook.Interceptor[T, R] {
	// Creation errors fall back to noop instruments.
	calls, _ := meter.Int64Counter("tapline.hook.calls",
		metric.WithDescription("Number of hook invocations"),
		metric.WithUnit("{call}"),
	)
	errs, _ := meter.Int64Counter("tapline.hook.errors",
		metric.WithDescription("Number of failed hook invocations"),
		metric.WithUnit("{error}"),
	)
	results, _ := meter.Int64Counter("tapline.hook.results",
		metric.WithDescription("Number of results produced by bail and waterfall hooks"),
		metric.WithUnit("{result}"),
	)
	executions, _ := meter.Int64Counter("tapline.tap.executions",
		metric.WithDescription("Number of tap executions"),
		metric.WithUnit("{execution}"),
	)
	duration, _ := meter.Float64Histogram("tapline.tap.duration",
		metric.WithDescription("Duration of tap execution in seconds"),
		metric.WithUnit("s"),
	)

	hookAttrs := metric.WithAttributes(attribute.String("hook", hookName))
	ctx := context.Background()

	return hook.Interceptor[T, R]{
		Name: "hooktel.metrics",
		Register: func(tap hook.Tap[T, R]) (hook.Tap[T, R], error) {
			return hook.Around(tap, func(t hook.Tap[T, R]) func(error) {
				start := time.Now()
				return func(err error) {
					status := "ok"
					if err != nil {
						status = "error"
					}
					attrs := metric.WithAttributes(
						attribute.String("hook", hookName),
						attribute.String("tap", t.Name),
						attribute.String("status", status),
					)
					duration.Record(ctx, time.Since(start).Seconds(), attrs)
					executions.Add(ctx, 1, attrs)
				}
			}), nil
		},
		Call: func(T) {
			calls.Add(ctx, 1, hookAttrs)
		},
		Error: func(error) {
			errs.Add(ctx, 1, hookAttrs)
		},
		Result: func(R) {
			results.Add(ctx, 1, hookAttrs)
		},
	}
}
