package hooktel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/tapline/internal/hook"
)

// instrumentationName is the instrumentation scope for tracers and meters.
const instrumentationName = "github.com/dshills/tapline"

// Tracing returns an interceptor that traces taps with the global tracer.
func Tracing[T, R any](hookName string) hook.Interceptor[T, R] {
	return TracingWithTracer[T, R](otel.Tracer(instrumentationName), hookName)
}

// TracingWithTracer returns an interceptor that wraps each tap body in a
// span from tracer. Spans end when the tap settles; errors are recorded and
// set the span status.
func TracingWithTracer[T, R any](tracer trace.Tracer, hookName string) hook.Interceptor[T, R] {
	return hook.Interceptor[T, R]{
		Name: "hooktel.tracing",
		Register: func(tap hook.Tap[T, R]) (hook.Tap[T, R], error) {
			return hook.Around(tap, func(t hook.Tap[T, R]) func(error) {
				_, span := tracer.Start(context.Background(), "tapline.tap",
					trace.WithAttributes(
						attribute.String("tapline.hook", hookName),
						attribute.String("tapline.tap", t.Name),
						attribute.Int("tapline.tap.stage", int(t.Stage)),
						attribute.String("tapline.tap.kind", t.Kind.String()),
					),
					trace.WithSpanKind(trace.SpanKindInternal),
				)
				return func(err error) {
					if err != nil {
						span.RecordError(err)
						span.SetStatus(codes.Error, err.Error())
					} else {
						span.SetStatus(codes.Ok, "")
					}
					span.End()
				}
			}), nil
		},
	}
}
