package httpclient

import (
	"context"
	"errors"
	"fmt"
	"maps"
	nethttp "net/http"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-observatory/cache"
	"github.com/gaborage/go-observatory/httpclient/internal/tracking"
	"github.com/gaborage/go-observatory/logger"
	"github.com/gaborage/go-observatory/ratelimit"
	"github.com/gaborage/go-observatory/scheduler"
	"github.com/gaborage/go-observatory/trace"
)

const (
	// DefaultBaseURL is the automation backend's API root on the local machine.
	DefaultBaseURL = "http://localhost:1888/v2/api"

	// BaseURLEnv overrides the base URL when the client is built.
	BaseURLEnv = "OBSERVATORY_GATEWAY_BASEURL"

	// DefaultTimeout is the default per-attempt timeout
	DefaultTimeout = 10 * time.Second

	// DefaultRetries is the default number of retries after the first attempt
	DefaultRetries = 3

	// DefaultRetryDelay is the default constant delay between attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultRateLimitPerSecond is the gateway client's token budget
	DefaultRateLimitPerSecond = 5
)

type client struct {
	httpClient *nethttp.Client
	logger     logger.Logger
	config     *Config

	limiter   *ratelimit.Limiter
	responses *cache.Store[*Response]
	lane      *scheduler.Scheduler
	inflight  singleflight.Group

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	callCount            int64
}

// NewClient creates a client with default configuration
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config     *Config
	logger     logger.Logger
	transport  nethttp.RoundTripper
	httpClient *nethttp.Client
	limiter    *ratelimit.Limiter
	cacheOpts  []cache.Option
}

// NewBuilder creates a builder with the defaults. The base URL defaults to
// the BaseURLEnv environment variable, then DefaultBaseURL.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	baseURL := DefaultBaseURL
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" {
		baseURL = v
	}
	return &Builder{
		config: &Config{
			BaseURL:            baseURL,
			Timeout:            DefaultTimeout,
			TimeoutMessage:     DefaultTimeoutMessage,
			Retry:              RetryPolicy{Retries: DefaultRetries, Delay: DefaultRetryDelay},
			RateLimitPerSecond: DefaultRateLimitPerSecond,
			CacheTTL:           cache.DefaultTTL,
			DefaultHeaders:     make(map[string]string),
		},
		logger: log,
	}
}

// WithBaseURL sets the URL relative request paths are resolved against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	if baseURL != "" {
		b.config.BaseURL = baseURL
	}
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.config.Timeout = timeout
	}
	return b
}

// WithTimeoutMessage sets the message of TimeoutError failures
func (b *Builder) WithTimeoutMessage(message string) *Builder {
	if message != "" {
		b.config.TimeoutMessage = message
	}
	return b
}

// WithRetries sets the retry count and constant delay, keeping the predicate
func (b *Builder) WithRetries(retries int, delay time.Duration) *Builder {
	b.config.Retry.Retries = retries
	b.config.Retry.Delay = delay
	return b
}

// WithRetryPolicy replaces the default retry policy
func (b *Builder) WithRetryPolicy(policy RetryPolicy) *Builder {
	b.config.Retry = policy
	return b
}

// WithRateLimit sets the number of outbound calls allowed per second
func (b *Builder) WithRateLimit(perSecond int) *Builder {
	b.config.RateLimitPerSecond = perSecond
	return b
}

// WithRateLimiter shares an existing limiter, e.g. between clients talking to
// the same backend
func (b *Builder) WithRateLimiter(limiter *ratelimit.Limiter) *Builder {
	b.limiter = limiter
	return b
}

// WithCacheTTL sets how long cached responses stay fresh
func (b *Builder) WithCacheTTL(ttl time.Duration) *Builder {
	b.config.CacheTTL = ttl
	return b
}

// WithCacheMaxEntries caps the response cache; zero keeps it unbounded
func (b *Builder) WithCacheMaxEntries(n int) *Builder {
	b.config.CacheMaxEntries = n
	return b
}

// WithCacheClock overrides the cache time source
func (b *Builder) WithCacheClock(now func() time.Time) *Builder {
	b.cacheOpts = append(b.cacheOpts, cache.WithClock(now))
	return b
}

// WithCoalescing makes concurrent identical cacheable misses share one execution
func (b *Builder) WithCoalescing(enabled bool) *Builder {
	b.config.CoalesceCacheMisses = enabled
	return b
}

// WithCredentials sets the bearer token source
func (b *Builder) WithCredentials(provider CredentialProvider) *Builder {
	b.config.Credentials = provider
	return b
}

// WithDefaultHeader adds a header sent with every request
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithTransport sets the round tripper used for gateway calls
func (b *Builder) WithTransport(transport nethttp.RoundTripper) *Builder {
	b.transport = transport
	return b
}

// WithHTTPClient uses a preconfigured *http.Client. Its Timeout is left
// untouched; per-attempt timeouts are applied through the request context.
func (b *Builder) WithHTTPClient(c *nethttp.Client) *Builder {
	b.httpClient = c
	return b
}

// Build creates the client and starts its priority lane. The client takes a
// snapshot of the builder, so later With* calls only affect later builds.
func (b *Builder) Build() Client {
	httpClient := &nethttp.Client{}
	if b.httpClient != nil {
		copied := *b.httpClient
		httpClient = &copied
	}
	if b.transport != nil {
		httpClient.Transport = b.transport
	}

	cfg := b.snapshot()

	limiter := b.limiter
	if limiter == nil {
		limiter = ratelimit.PerSecond(cfg.RateLimitPerSecond)
	}

	cacheOpts := append([]cache.Option{cache.WithMaxEntries(cfg.CacheMaxEntries)}, b.cacheOpts...)

	// Built-in interceptors run before user supplied ones.
	requestInterceptors := []RequestInterceptor{NewRequestIDInterceptor(), NewTraceContextInterceptor()}
	if cfg.Credentials != nil {
		requestInterceptors = append(requestInterceptors, NewBearerTokenInterceptor(cfg.Credentials))
	}
	requestInterceptors = append(requestInterceptors, cfg.RequestInterceptors...)

	return &client{
		httpClient:           httpClient,
		logger:               b.logger,
		config:               cfg,
		limiter:              limiter,
		responses:            cache.New[*Response](cfg.CacheTTL, cacheOpts...),
		lane:                 scheduler.New(),
		requestInterceptors:  requestInterceptors,
		responseInterceptors: cfg.ResponseInterceptors,
	}
}

// snapshot copies the config with its own header map and interceptor slices.
func (b *Builder) snapshot() *Config {
	cfg := *b.config
	cfg.DefaultHeaders = maps.Clone(b.config.DefaultHeaders)
	if cfg.DefaultHeaders == nil {
		cfg.DefaultHeaders = make(map[string]string)
	}
	cfg.RequestInterceptors = slices.Clone(b.config.RequestInterceptors)
	cfg.ResponseInterceptors = slices.Clone(b.config.ResponseInterceptors)
	return &cfg
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Close stops the priority lane
func (c *client) Close() error {
	return c.lane.Close()
}

// Do performs a request: cache lookup, then the priority lane or a direct
// execution, then the retry loop.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	start := time.Now()
	method = strings.ToUpper(method)

	call, apiErr := c.prepare(method, req)
	if apiErr != nil {
		c.logFailure(ctx, method, req, apiErr, 0)
		tracking.RecordRequest(ctx, method, string(apiErr.Kind), time.Since(start))
		return nil, apiErr
	}
	ctx = trace.WithRequestID(ctx, trace.EnsureRequestID(ctx))
	callCount := atomic.AddInt64(&c.callCount, 1)

	if call.cacheable {
		if cached, ok := c.responses.Get(call.cacheKey); ok {
			tracking.RecordCacheLookup(ctx, true)
			resp := cached.clone()
			resp.Stats = Stats{ElapsedTime: time.Since(start), CallCount: callCount, Cached: true}
			c.logger.Debug().
				Str("method", method).
				Str("url", call.target).
				Msg("Gateway cache hit")
			tracking.RecordRequest(ctx, method, tracking.OutcomeSuccess, resp.Stats.ElapsedTime)
			return resp, nil
		}
		tracking.RecordCacheLookup(ctx, false)
	}

	resp, err := c.run(ctx, call)
	elapsed := time.Since(start)
	if err != nil {
		tracking.RecordRequest(ctx, method, string(err.Kind), elapsed)
		return nil, err
	}

	resp.Stats.ElapsedTime = elapsed
	resp.Stats.CallCount = callCount
	tracking.RecordRequest(ctx, method, tracking.OutcomeSuccess, elapsed)
	return resp, nil
}

// run executes call, coalescing identical cacheable misses when enabled.
// The response it returns is owned by the caller.
func (c *client) run(ctx context.Context, call *preparedCall) (*Response, *APIError) {
	if !call.cacheable || !c.config.CoalesceCacheMisses {
		return c.dispatch(ctx, call)
	}

	v, err, _ := c.inflight.Do(call.cacheKey, func() (any, error) {
		resp, apiErr := c.dispatch(ctx, call)
		if apiErr != nil {
			return nil, apiErr
		}
		return resp, nil
	})
	if err != nil {
		apiErr, _ := AsAPIError(err)
		return nil, apiErr
	}
	return v.(*Response).clone(), nil
}

// dispatch chooses the priority lane or a direct execution and stores
// cacheable successes.
func (c *client) dispatch(ctx context.Context, call *preparedCall) (*Response, *APIError) {
	var (
		resp   *Response
		apiErr *APIError
	)

	if call.req.UseQueue {
		tracking.AddQueueDepth(ctx, 1)
		err := c.lane.Submit(ctx, call.req.Priority, func(ctx context.Context) error {
			resp, apiErr = c.execute(ctx, call)
			if apiErr != nil {
				return apiErr
			}
			return nil
		})
		tracking.AddQueueDepth(ctx, -1)
		if err != nil && apiErr == nil {
			apiErr = c.laneError(ctx, err)
			c.logFailure(ctx, call.method, call.req, apiErr, 0)
		}
	} else {
		resp, apiErr = c.execute(ctx, call)
	}

	if apiErr != nil {
		return nil, apiErr
	}
	if call.cacheable {
		c.responses.Set(call.cacheKey, resp.clone())
	}
	return resp, nil
}

// laneError converts a scheduler failure that never reached the executor.
func (c *client) laneError(ctx context.Context, err error) *APIError {
	if errors.Is(err, scheduler.ErrClosed) {
		return newAPIError(CancelError, CodeCanceled, "Client closed", 0, time.Time{})
	}
	return Classify(Failure{Ctx: ctx, Err: err, TimeoutMessage: c.config.TimeoutMessage})
}

// preparedCall is a validated request with its resolved URL and encoded body.
type preparedCall struct {
	method    string
	req       *Request
	target    string
	body      []byte
	policy    RetryPolicy
	cacheable bool
	cacheKey  string
}

// prepare validates req before any attempt. Its failures are UnknownError
// regardless of the state of the caller's context.
func (c *client) prepare(method string, req *Request) (*preparedCall, *APIError) {
	invalid := func(format string, args ...any) *APIError {
		return Classify(Failure{Err: fmt.Errorf(format, args...)})
	}

	if req == nil {
		return nil, invalid("request cannot be nil")
	}
	if method == "" {
		return nil, invalid("method cannot be empty")
	}

	target, err := resolveURL(c.config.BaseURL, req)
	if err != nil {
		return nil, invalid("invalid request URL: %w", err)
	}

	body, err := encodeBody(req)
	if err != nil {
		return nil, invalid("failed to encode request body: %w", err)
	}

	policy := c.config.Retry
	if req.Retry != nil {
		policy = *req.Retry
	}
	if err := policy.Validate(); err != nil {
		return nil, invalid("%w", err)
	}

	call := &preparedCall{
		method:    method,
		req:       req,
		target:    target,
		body:      body,
		policy:    policy,
		cacheable: req.Cache && isSafeMethod(method),
	}
	if call.cacheable {
		call.cacheKey = CacheKey(method, target)
	}
	return call, nil
}
