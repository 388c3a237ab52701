package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
)

// Envelope is the response wrapper used by every automation backend endpoint.
// A 2xx transport status does not imply Success; callers check it.
type Envelope[T any] struct {
	Success    bool   `json:"Success"`
	Response   T      `json:"Response"`
	Error      string `json:"Error"`
	StatusCode int    `json:"StatusCode"`
	Type       string `json:"Type"`
}

// EnvelopeError reports an envelope with Success=false.
type EnvelopeError struct {
	Message    string
	StatusCode int
	Type       string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("gateway reported failure: %s (status: %d, type: %s)", e.Message, e.StatusCode, e.Type)
}

// Result returns the payload, or an *EnvelopeError when the backend reported failure.
func (e *Envelope[T]) Result() (T, error) {
	if !e.Success {
		var zero T
		return zero, &EnvelopeError{Message: e.Error, StatusCode: e.StatusCode, Type: e.Type}
	}
	return e.Response, nil
}

// DoJSON performs the request and decodes the response body into T. Decoding
// failures are reported as UnknownError.
func DoJSON[T any](ctx context.Context, c Client, method string, req *Request) (T, error) {
	var out T
	resp, err := c.Do(ctx, method, req)
	if err != nil {
		return out, err
	}
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, Classify(Failure{Ctx: ctx, Err: fmt.Errorf("failed to decode response body: %w", err)})
	}
	return out, nil
}

// GetJSON performs a GET request and decodes the response body into T.
func GetJSON[T any](ctx context.Context, c Client, req *Request) (T, error) {
	return DoJSON[T](ctx, c, nethttp.MethodGet, req)
}

// GetEnvelope performs a GET request and decodes the gateway envelope.
func GetEnvelope[T any](ctx context.Context, c Client, req *Request) (*Envelope[T], error) {
	env, err := GetJSON[Envelope[T]](ctx, c, req)
	if err != nil {
		return nil, err
	}
	return &env, nil
}
