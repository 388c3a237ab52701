package httpclient

import (
	"context"
	nethttp "net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/gaborage/go-observatory/trace"
)

// NewBearerTokenInterceptor sets "Authorization: Bearer <token>" when the
// provider has a token and the request carries no Authorization header yet.
func NewBearerTokenInterceptor(provider CredentialProvider) RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		if provider == nil || req.Header.Get("Authorization") != "" {
			return nil
		}
		if token, ok := provider.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return nil
	}
}

// NewRequestIDInterceptor propagates the request ID from ctx, generating one
// when absent.
func NewRequestIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(HeaderXRequestID) == "" {
			req.Header.Set(HeaderXRequestID, trace.EnsureRequestID(ctx))
		}
		return nil
	}
}

// NewTraceContextInterceptor injects the span context carried by ctx using
// the global text map propagator. It is a no-op until a propagator is set.
func NewTraceContextInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
		return nil
	}
}
