package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	before := otel.GetMeterProvider()

	p, err := NewProvider(&Config{Enabled: false})
	require.NoError(t, err)

	assert.IsType(t, metricnoop.MeterProvider{}, p.MeterProvider())
	assert.IsType(t, tracenoop.TracerProvider{}, p.TracerProvider())
	assert.Equal(t, before, otel.GetMeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestEnabledProviderExportsOnShutdown(t *testing.T) {
	before := otel.GetMeterProvider()
	var buf bytes.Buffer

	p, err := NewProvider(&Config{Enabled: true, ServiceName: "gatewayctl-test", Interval: time.Hour, Writer: &buf})
	require.NoError(t, err)
	assert.Equal(t, p.MeterProvider(), otel.GetMeterProvider())

	counter, err := otel.Meter("observability-test").Int64Counter("test.gateway.calls")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, Drain(context.Background(), p, time.Second))

	out := buf.String()
	assert.Contains(t, out, "test.gateway.calls")
	assert.Contains(t, out, "gatewayctl-test")
	assert.Equal(t, before, otel.GetMeterProvider())

	// second shutdown is a no-op
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, EndpointStdout, cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.NotNil(t, cfg.Writer)
}

func TestDrainNilProvider(t *testing.T) {
	assert.NoError(t, Drain(context.Background(), nil, 0))
}

func TestTracingProviderExportsSpansOnShutdown(t *testing.T) {
	beforeTracer := otel.GetTracerProvider()
	beforePropagator := otel.GetTextMapPropagator()
	var buf bytes.Buffer

	p, err := NewProvider(&Config{Tracing: true, ServiceName: "gatewayctl-test", Writer: &buf})
	require.NoError(t, err)
	assert.Equal(t, p.TracerProvider(), otel.GetTracerProvider())
	assert.IsType(t, metricnoop.MeterProvider{}, p.MeterProvider(), "metrics stay off without Enabled")

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")

	_, span := otel.Tracer("observability-test").Start(context.Background(), "test.gateway.span")
	span.End()

	require.NoError(t, Drain(context.Background(), p, time.Second))

	out := buf.String()
	assert.Contains(t, out, "test.gateway.span")
	assert.Contains(t, out, "gatewayctl-test")
	assert.Equal(t, beforeTracer, otel.GetTracerProvider())
	assert.Equal(t, beforePropagator, otel.GetTextMapPropagator())
}

func TestForceFlushWritesPendingSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(&Config{Tracing: true, Enabled: true, Interval: time.Hour, Writer: &buf})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Drain(context.Background(), p, time.Second) })

	_, span := otel.Tracer("observability-test").Start(context.Background(), "flushed.span")
	span.End()

	require.NoError(t, p.ForceFlush(context.Background()))
	assert.Contains(t, buf.String(), "flushed.span")
}

func TestOTLPProviders(t *testing.T) {
	for _, protocol := range []string{ProtocolHTTP, ProtocolGRPC} {
		t.Run(protocol, func(t *testing.T) {
			p, err := NewProvider(&Config{
				Enabled:  true,
				Tracing:  true,
				Interval: time.Hour,
				Endpoint: "127.0.0.1:4317",
				Protocol: protocol,
				Insecure: true,
				Headers:  map[string]string{"Authorization": "Bearer collector-token"},
			})
			require.NoError(t, err)
			assert.NotNil(t, p.MeterProvider())
			assert.NotNil(t, p.TracerProvider())

			// No collector is listening, so only the restore matters here.
			_ = Drain(context.Background(), p, 100*time.Millisecond)
			assert.NotEqual(t, p.TracerProvider(), otel.GetTracerProvider())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "stdout", cfg: Config{Endpoint: EndpointStdout, Protocol: "bogus"}},
		{name: "http", cfg: Config{Endpoint: "collector:4318", Protocol: ProtocolHTTP}},
		{name: "grpc", cfg: Config{Endpoint: "collector:4317", Protocol: ProtocolGRPC}},
		{name: "bad_protocol", cfg: Config{Endpoint: "collector:4317", Protocol: "udp"}, wantErr: ErrInvalidProtocol},
		{name: "scheme", cfg: Config{Endpoint: "http://collector:4318", Protocol: ProtocolHTTP}, wantErr: ErrInvalidEndpointFormat},
		{name: "missing_port", cfg: Config{Endpoint: "collector", Protocol: ProtocolGRPC}, wantErr: ErrInvalidEndpointFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	before := otel.GetTextMapPropagator()

	_, err := NewProvider(&Config{Tracing: true, Endpoint: "collector:4317", Protocol: "udp"})
	assert.ErrorIs(t, err, ErrInvalidProtocol)
	assert.Equal(t, before, otel.GetTextMapPropagator())
}
