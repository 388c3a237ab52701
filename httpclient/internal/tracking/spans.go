package tracking

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	clientTracerName = "go-observatory/gateway-client"

	attrURL        = "url.full"
	attrAttempt    = "gateway.attempt"
	attrQueued     = "gateway.queued"
	attrStatusCode = "http.response.status_code"
)

// StartAttempt opens a client span for one transport attempt. The span is a
// child of whatever span ctx carries.
func StartAttempt(ctx context.Context, method, url string, attempt int, queued bool) (context.Context, trace.Span) {
	return otel.Tracer(clientTracerName).Start(ctx, "gateway "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrURL, url),
			attribute.Int(attrAttempt, attempt),
			attribute.Bool(attrQueued, queued),
		),
	)
}

// EndAttempt closes span. kind is empty for a successful attempt.
func EndAttempt(span trace.Span, status int, kind, message string) {
	if status != 0 {
		span.SetAttributes(attribute.Int(attrStatusCode, status))
	}
	if kind != "" {
		span.SetAttributes(attribute.String(attrErrorKind, kind))
		span.SetStatus(codes.Error, message)
	}
	span.End()
}
