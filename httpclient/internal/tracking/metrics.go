// Package tracking records OpenTelemetry metrics for the gateway client.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	clientMeterName = "go-observatory/gateway-client"

	metricRequests        = "gateway.client.requests"
	metricAttempts        = "gateway.client.attempts"
	metricRetries         = "gateway.client.retries"
	metricCacheLookups    = "gateway.client.cache.lookups"
	metricRequestDuration = "gateway.client.request.duration"
	metricQueueDepth      = "gateway.client.queue.depth"

	attrMethod    = "http.request.method"
	attrOutcome   = "outcome"
	attrErrorKind = "error.kind"
	attrCacheHit  = "cache.hit"
)

// OutcomeSuccess labels requests that returned a response.
const OutcomeSuccess = "success"

var durationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var (
	meterOnce   sync.Once
	meterInitMu sync.Mutex
	clientMeter metric.Meter

	requestCounter    metric.Int64Counter
	attemptCounter    metric.Int64Counter
	retryCounter      metric.Int64Counter
	cacheCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram
	queueDepthGauge   metric.Int64UpDownCounter
)

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize gateway client metric %s: %v\n", name, err)
	}
}

func initClientMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if clientMeter != nil {
		return
	}
	clientMeter = otel.Meter(clientMeterName)

	var err error
	requestCounter, err = clientMeter.Int64Counter(metricRequests,
		metric.WithDescription("Gateway requests by final outcome"),
		metric.WithUnit("{request}"))
	logMetricError(metricRequests, err)

	attemptCounter, err = clientMeter.Int64Counter(metricAttempts,
		metric.WithDescription("Transport attempts made against the gateway"),
		metric.WithUnit("{attempt}"))
	logMetricError(metricAttempts, err)

	retryCounter, err = clientMeter.Int64Counter(metricRetries,
		metric.WithDescription("Retries scheduled after a failed attempt"),
		metric.WithUnit("{retry}"))
	logMetricError(metricRetries, err)

	cacheCounter, err = clientMeter.Int64Counter(metricCacheLookups,
		metric.WithDescription("Response cache lookups"),
		metric.WithUnit("{lookup}"))
	logMetricError(metricCacheLookups, err)

	durationHistogram, err = clientMeter.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Duration of gateway requests including queueing and retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	logMetricError(metricRequestDuration, err)

	queueDepthGauge, err = clientMeter.Int64UpDownCounter(metricQueueDepth,
		metric.WithDescription("Requests waiting in or running on the priority lane"),
		metric.WithUnit("{request}"))
	logMetricError(metricQueueDepth, err)
}

func ensureInitialized() {
	meterOnce.Do(initClientMeter)
}

// RecordRequest records a finished request. outcome is OutcomeSuccess or the error kind.
func RecordRequest(ctx context.Context, method, outcome string, elapsed time.Duration) {
	ensureInitialized()
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrOutcome, outcome),
	)
	if requestCounter != nil {
		requestCounter.Add(ctx, 1, attrs)
	}
	if durationHistogram != nil {
		durationHistogram.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RecordAttempt counts one transport attempt.
func RecordAttempt(ctx context.Context, method string) {
	ensureInitialized()
	if attemptCounter != nil {
		attemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
	}
}

// RecordRetry counts a retry scheduled after an error of the given kind.
func RecordRetry(ctx context.Context, kind string) {
	ensureInitialized()
	if retryCounter != nil {
		retryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrErrorKind, kind)))
	}
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(ctx context.Context, hit bool) {
	ensureInitialized()
	if cacheCounter != nil {
		cacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool(attrCacheHit, hit)))
	}
}

// AddQueueDepth adjusts the priority lane depth by delta.
func AddQueueDepth(ctx context.Context, delta int64) {
	ensureInitialized()
	if queueDepthGauge != nil {
		queueDepthGauge.Add(ctx, delta)
	}
}

// ResetForTesting drops the cached instruments so the next call binds to the
// current global meter provider.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	clientMeter = nil
	requestCounter = nil
	attemptCounter = nil
	retryCounter = nil
	cacheCounter = nil
	durationHistogram = nil
	queueDepthGauge = nil
	meterOnce = sync.Once{}
}
