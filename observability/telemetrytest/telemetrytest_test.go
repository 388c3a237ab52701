package telemetrytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestInstallCollectsGlobalMetrics(t *testing.T) {
	mp := Install(t)

	meter := otel.Meter("telemetrytest")
	counter, err := meter.Int64Counter("calls")
	require.NoError(t, err)
	hist, err := meter.Float64Histogram("latency")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Add(ctx, 2, metric.WithAttributes(attribute.String("outcome", "success")))
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ServerError")))
	hist.Record(ctx, 0.2)
	hist.Record(ctx, 0.4)

	rm := mp.Collect(t)
	require.NotNil(t, FindMetric(rm, "calls"))
	assert.Nil(t, FindMetric(rm, "missing"))
	assert.Equal(t, int64(3), SumInt64(rm, "calls"))
	assert.Equal(t, int64(2), SumInt64(rm, "calls", attribute.String("outcome", "success")))
	assert.Equal(t, int64(0), SumInt64(rm, "missing"))
	assert.Equal(t, uint64(2), HistogramCount(rm, "latency"))
}

func TestInstallTracerRecordsSpans(t *testing.T) {
	tp := InstallTracer(t)

	ctx, parent := otel.Tracer("telemetrytest").Start(context.Background(), "parent")
	_, child := otel.Tracer("telemetrytest").Start(ctx, "child")
	child.End()
	parent.End()

	assert.Equal(t, []string{"child", "parent"}, tp.SpanNames())
	spans := tp.Exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}
