package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gaborage/go-observatory/httpclient/internal/tracking"
	"github.com/gaborage/go-observatory/trace"
)

// execute runs the retry loop for one call. Each iteration takes a rate
// limit token, makes one attempt and classifies its failure exactly once.
func (c *client) execute(ctx context.Context, call *preparedCall) (*Response, *APIError) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Acquire(ctx, 1); err != nil {
			apiErr := Classify(Failure{Ctx: ctx, Err: err, TimeoutMessage: c.config.TimeoutMessage})
			c.logFailure(ctx, call.method, call.req, apiErr, attempt)
			return nil, apiErr
		}

		resp, apiErr := c.attempt(ctx, call, attempt)
		if apiErr == nil {
			resp.Stats.Attempts = attempt + 1
			return resp, nil
		}

		if !call.policy.allows(attempt, apiErr) {
			c.logFailure(ctx, call.method, call.req, apiErr, attempt+1)
			return nil, apiErr
		}

		tracking.RecordRetry(ctx, string(apiErr.Kind))
		c.logger.Warn().
			Str("method", call.method).
			Str("url", call.target).
			Str("request_id", trace.EnsureRequestID(ctx)).
			Str("kind", string(apiErr.Kind)).
			Int("status", apiErr.Status).
			Int("attempt", attempt+1).
			Dur("delay", call.policy.Delay).
			Msg("Gateway request failed, retrying")

		if err := sleepContext(ctx, call.policy.Delay); err != nil {
			apiErr = Classify(Failure{Ctx: ctx, Err: err, TimeoutMessage: c.config.TimeoutMessage})
			c.logFailure(ctx, call.method, call.req, apiErr, attempt+1)
			return nil, apiErr
		}
	}
}

// attempt performs a single round trip bounded by the request timeout and
// records it as a client span.
func (c *client) attempt(ctx context.Context, call *preparedCall, attempt int) (*Response, *APIError) {
	spanCtx, span := tracking.StartAttempt(ctx, call.method, call.target, attempt+1, call.req.UseQueue)
	resp, apiErr := c.roundTrip(ctx, spanCtx, call, attempt)
	if apiErr != nil {
		tracking.EndAttempt(span, apiErr.Status, string(apiErr.Kind), apiErr.Message)
	} else {
		tracking.EndAttempt(span, resp.StatusCode, "", "")
	}
	return resp, apiErr
}

// roundTrip sends the request under spanCtx. Failures are classified
// against ctx so an expired attempt deadline reads as a timeout while a
// cancelled caller reads as a cancellation.
func (c *client) roundTrip(ctx, spanCtx context.Context, call *preparedCall, attempt int) (*Response, *APIError) {
	timeout := call.req.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(spanCtx, timeout)
	defer cancel()

	failure := Failure{Ctx: ctx, TimeoutMessage: c.config.TimeoutMessage}

	httpReq, err := c.buildRequest(attemptCtx, call)
	if err != nil {
		failure.Err = err
		return nil, Classify(failure)
	}

	c.logRequest(attemptCtx, call, attempt)
	tracking.RecordAttempt(ctx, call.method)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		failure.Err = err
		failure.Transport = true
		return nil, Classify(failure)
	}

	resp, err := c.readResponse(attemptCtx, httpReq, httpResp)
	if err != nil {
		failure.Err = err
		failure.Transport = !errors.Is(err, errInterceptor)
		return nil, Classify(failure)
	}
	c.logResponse(attemptCtx, call, resp, time.Since(start))

	if !IsSuccessStatus(resp.StatusCode) {
		failure.Response = resp
		return nil, Classify(failure)
	}
	return resp, nil
}

var errInterceptor = errors.New("interceptor failed")

// buildRequest constructs an *http.Request, applies headers and runs request interceptors.
func (c *client) buildRequest(ctx context.Context, call *preparedCall) (*nethttp.Request, error) {
	var body io.Reader
	if call.body != nil {
		body = bytes.NewReader(call.body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, call.method, call.target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range call.req.Headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Content-Type") == "" && call.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, fmt.Errorf("request %w: %w", errInterceptor, err)
		}
	}
	return httpReq, nil
}

// readResponse runs response interceptors and reads the body.
func (c *client) readResponse(ctx context.Context, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, httpReq, httpResp); err != nil {
			return nil, fmt.Errorf("response %w: %w", errInterceptor, err)
		}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}

// resolveURL joins relative paths onto baseURL and merges query parameters.
func resolveURL(baseURL string, req *Request) (string, error) {
	raw := req.URL
	if raw == "" {
		return "", errors.New("URL cannot be empty")
	}
	if !strings.Contains(raw, "://") {
		if baseURL == "" {
			return "", fmt.Errorf("relative URL %q without a base URL", raw)
		}
		raw = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(raw, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL %q must be absolute", raw)
	}

	if len(req.Params) > 0 {
		query := u.Query()
		for key, values := range req.Params {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func encodeBody(req *Request) ([]byte, error) {
	if req.Body != nil || req.JSON == nil {
		return req.Body, nil
	}
	return json.Marshal(req.JSON)
}

// logRequest logs an outgoing attempt
func (c *client) logRequest(ctx context.Context, call *preparedCall, attempt int) {
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", call.method).
		Str("url", call.target).
		Str("request_id", trace.EnsureRequestID(ctx)).
		Int("attempt", attempt+1).
		Bool("queued", call.req.UseQueue).
		Msg("Gateway request")
}

// logResponse logs a received response
func (c *client) logResponse(ctx context.Context, call *preparedCall, resp *Response, elapsed time.Duration) {
	c.logger.Debug().
		Str("direction", "inbound").
		Str("method", call.method).
		Str("url", call.target).
		Str("request_id", trace.EnsureRequestID(ctx)).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("Gateway response")
}

// logFailure logs a terminal failure
func (c *client) logFailure(ctx context.Context, method string, req *Request, apiErr *APIError, attempts int) {
	event := c.logger.Error().
		Str("method", method).
		Str("kind", string(apiErr.Kind)).
		Str("code", apiErr.Code).
		Int("status", apiErr.Status).
		Int("attempts", attempts)
	if req != nil {
		event = event.Str("url", req.URL)
	}
	if id, ok := trace.RequestIDFromContext(ctx); ok {
		event = event.Str("request_id", id)
	}
	event.Msg("Gateway request failed: " + apiErr.Message)
}
