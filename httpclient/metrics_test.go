package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gaborage/go-observatory/httpclient/internal/tracking"
	"github.com/gaborage/go-observatory/observability/telemetrytest"
)

func TestClientRecordsMetrics(t *testing.T) {
	tracking.ResetForTesting()
	t.Cleanup(tracking.ResetForTesting)
	mp := telemetrytest.Install(t)

	rec := newRecorder(func(call int, _ *http.Request) (*http.Response, error) {
		if call == 1 {
			return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
		}
		return jsonResponse(http.StatusOK, `{}`), nil
	})
	c := newTestClient(t, rec, func(b *Builder) { b.WithRetries(1, time.Millisecond) })
	req := &Request{URL: "/equipment/camera/info", Cache: true}

	for range 2 {
		_, err := c.Get(context.Background(), req)
		require.NoError(t, err)
	}

	rm := mp.Collect(t)
	assert.Equal(t, int64(2), telemetrytest.SumInt64(rm, "gateway.client.requests",
		attribute.String("outcome", tracking.OutcomeSuccess)))
	assert.Equal(t, int64(2), telemetrytest.SumInt64(rm, "gateway.client.attempts"))
	assert.Equal(t, int64(1), telemetrytest.SumInt64(rm, "gateway.client.retries",
		attribute.String("error.kind", string(ServerError))))
	assert.Equal(t, int64(1), telemetrytest.SumInt64(rm, "gateway.client.cache.lookups", attribute.Bool("cache.hit", true)))
	assert.Equal(t, int64(1), telemetrytest.SumInt64(rm, "gateway.client.cache.lookups", attribute.Bool("cache.hit", false)))
	assert.Equal(t, uint64(2), telemetrytest.HistogramCount(rm, "gateway.client.request.duration"))
}
