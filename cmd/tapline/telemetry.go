package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// telemetry collects hook metrics and spans in memory for an end-of-run
// report.
type telemetry struct {
	reader *sdkmetric.ManualReader
	spans  *tracetest.SpanRecorder
	meters *sdkmetric.MeterProvider
	tracer *sdktrace.TracerProvider
}

// startTelemetry installs in-memory global providers.
func startTelemetry() *telemetry {
	t := &telemetry{
		reader: sdkmetric.NewManualReader(),
		spans:  tracetest.NewSpanRecorder(),
	}
	t.meters = sdkmetric.NewMeterProvider(sdkmetric.WithReader(t.reader))
	t.tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(t.spans))
	otel.SetMeterProvider(t.meters)
	otel.SetTracerProvider(t.tracer)
	return t
}

type tapRow struct {
	hook, tap         string
	ok, failed, spans int64
}

// report writes per-tap execution counts and shuts the providers down.
func (t *telemetry) report(ctx context.Context, w io.Writer) error {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	rows := make(map[[2]string]*tapRow)
	row := func(hook, tap string) *tapRow {
		key := [2]string{hook, tap}
		r, ok := rows[key]
		if !ok {
			r = &tapRow{hook: hook, tap: tap}
			rows[key] = r
		}
		return r
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "tapline.tap.executions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				r := row(attr(dp.Attributes, "hook"), attr(dp.Attributes, "tap"))
				if attr(dp.Attributes, "status") == "error" {
					r.failed += dp.Value
				} else {
					r.ok += dp.Value
				}
			}
		}
	}
	for _, span := range t.spans.Ended() {
		var hook, tap string
		for _, kv := range span.Attributes() {
			switch kv.Key {
			case "tapline.hook":
				hook = kv.Value.AsString()
			case "tapline.tap":
				tap = kv.Value.AsString()
			}
		}
		row(hook, tap).spans++
	}

	sorted := make([]*tapRow, 0, len(rows))
	for _, r := range rows {
		sorted = append(sorted, r)
	}
	slices.SortFunc(sorted, func(a, b *tapRow) int {
		return cmp.Or(strings.Compare(a.hook, b.hook), strings.Compare(a.tap, b.tap))
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOOK\tTAP\tOK\tFAILED\tSPANS")
	for _, r := range sorted {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.hook, r.tap, r.ok, r.failed, r.spans)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if err := t.meters.Shutdown(ctx); err != nil {
		return err
	}
	return t.tracer.Shutdown(ctx)
}

func attr(set attribute.Set, key attribute.Key) string {
	v, ok := set.Value(key)
	if !ok {
		return ""
	}
	return v.AsString()
}
