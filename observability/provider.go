// Package observability sets up the OpenTelemetry meter and tracer providers
// used by the command line tools. Libraries record through the global
// providers, so nothing is exported until a Provider is installed.
package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Provider manages the lifecycle of the meter and tracer providers.
type Provider interface {
	// MeterProvider returns the configured meter provider.
	MeterProvider() metric.MeterProvider

	// TracerProvider returns the configured tracer provider.
	TracerProvider() trace.TracerProvider

	// Shutdown flushes pending telemetry and stops exporting.
	Shutdown(ctx context.Context) error

	// ForceFlush immediately exports pending telemetry.
	ForceFlush(ctx context.Context) error
}

type provider struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider

	previousMeter      metric.MeterProvider
	previousTracer     trace.TracerProvider
	previousPropagator propagation.TextMapPropagator

	mu       sync.Mutex
	shutdown bool
}

// NewProvider creates a provider from cfg and installs the enabled signals
// as global providers. With both signals disabled it returns a no-op provider
// and leaves the globals untouched.
func NewProvider(cfg *Config) (Provider, error) {
	safeCfg := *cfg
	safeCfg.ApplyDefaults()

	if !safeCfg.Enabled && !safeCfg.Tracing {
		return newNoopProvider(), nil
	}
	if err := safeCfg.Validate(); err != nil {
		return nil, err
	}

	res, err := createResource(&safeCfg)
	if err != nil {
		return nil, err
	}

	p := &provider{}
	if safeCfg.Enabled {
		if p.meterProvider, err = newMeterProvider(&safeCfg, res); err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
	}
	if safeCfg.Tracing {
		if p.tracerProvider, err = newTracerProvider(&safeCfg, res); err != nil {
			if p.meterProvider != nil {
				_ = p.meterProvider.Shutdown(context.Background())
			}
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	p.install()
	return p, nil
}

func createResource(cfg *Config) (*resource.Resource, error) {
	serviceRes, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	res, err := resource.Merge(resource.Default(), serviceRes)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func (p *provider) install() {
	if p.meterProvider != nil {
		p.previousMeter = otel.GetMeterProvider()
		otel.SetMeterProvider(p.meterProvider)
	}
	if p.tracerProvider != nil {
		p.previousTracer = otel.GetTracerProvider()
		p.previousPropagator = otel.GetTextMapPropagator()
		otel.SetTracerProvider(p.tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
}

func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return p.tracerProvider
}

// Shutdown exports remaining telemetry and restores the previous globals.
func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil
	}
	p.shutdown = true

	var errs []error
	if p.tracerProvider != nil {
		otel.SetTracerProvider(p.previousTracer)
		otel.SetTextMapPropagator(p.previousPropagator)
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.meterProvider != nil {
		otel.SetMeterProvider(p.previousMeter)
		if err := p.meterProvider.Shutdown(ctx); err != nil && !errors.Is(err, sdkmetric.ErrReaderShutdown) {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *provider) ForceFlush(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		errs = append(errs, p.tracerProvider.ForceFlush(ctx))
	}
	if p.meterProvider != nil {
		errs = append(errs, p.meterProvider.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

type noopProvider struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func newNoopProvider() *noopProvider {
	return &noopProvider{
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}
}

func (n *noopProvider) MeterProvider() metric.MeterProvider { return n.meterProvider }

func (n *noopProvider) TracerProvider() trace.TracerProvider { return n.tracerProvider }

func (n *noopProvider) Shutdown(context.Context) error { return nil }

func (n *noopProvider) ForceFlush(context.Context) error { return nil }
