// Package httpclient is the request-execution core shared by every device
// module of the observatory dashboard.
//
// A single Client wraps plain HTTP calls to the local automation backend with:
//
//   - a response cache for GET and HEAD requests that set Request.Cache,
//     with lazy TTL expiry (60s by default)
//   - an optional sequential priority lane (Request.UseQueue, Request.Priority)
//   - a token bucket shared by all calls, queued or not (5 per second by default)
//   - a retry loop with a constant delay; by default NetworkError and
//     ServerError are retried, everything else is terminal
//   - a request interceptor pipeline: request IDs, W3C trace context,
//     bearer token injection, then user interceptors
//
// Each transport attempt is recorded as an OpenTelemetry client span and in
// the gateway.client.* metrics through the global providers.
//
// Every failure crosses the API boundary as an *APIError whose Kind is one of
// NetworkError, TimeoutError, ServerError, ClientError, CancelError or
// UnknownError. A cancelled context always yields CancelError and stops
// retrying.
//
//	client := httpclient.NewBuilder(log).
//		WithBaseURL("http://localhost:1888/v2/api").
//		WithRetries(2, 500*time.Millisecond).
//		Build()
//	defer client.Close()
//
//	info, err := httpclient.GetEnvelope[CameraInfo](ctx, client, &httpclient.Request{
//		URL:   "/equipment/camera/info",
//		Cache: true,
//	})
//
// The cache never evicts on its own unless WithCacheMaxEntries is set, so a
// client polling many distinct URLs grows its cache with every new key.
package httpclient
