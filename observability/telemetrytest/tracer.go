package telemetrytest

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TracerProvider wraps the SDK TracerProvider and the in-memory exporter
// it writes to synchronously.
type TracerProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTracerProvider creates a TracerProvider exporting every ended span
// to memory before End returns.
func NewTracerProvider() *TracerProvider {
	exporter := tracetest.NewInMemoryExporter()
	return &TracerProvider{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		Exporter:       exporter,
	}
}

// InstallTracer makes a new TracerProvider and the W3C trace context
// propagator global, restoring both when the test ends.
func InstallTracer(t testing.TB) *TracerProvider {
	t.Helper()
	tp := NewTracerProvider()
	previous := otel.GetTracerProvider()
	previousPropagator := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		otel.SetTextMapPropagator(previousPropagator)
		_ = tp.Shutdown(context.Background())
	})
	return tp
}

// SpanNames lists the names of exported spans in end order.
func (tp *TracerProvider) SpanNames() []string {
	spans := tp.Exporter.GetSpans()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name)
	}
	return names
}
