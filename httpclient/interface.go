package httpclient

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/gaborage/go-observatory/trace"
)

// HeaderXRequestID is the header carrying the per-call request ID.
const HeaderXRequestID = trace.HeaderXRequestID

// Client executes gateway requests. Every error it returns is an *APIError.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
	// Close stops the priority lane. Queued requests still pending fail with CancelError.
	Close() error
}

// Request describes one gateway call. The client never modifies a Request,
// so a descriptor can be reused across calls.
type Request struct {
	// URL is absolute, or a path relative to the client's base URL.
	URL     string
	Params  url.Values
	Headers map[string]string
	// Body is sent as is. When nil and JSON is set, JSON is marshalled instead.
	Body []byte
	JSON any
	// Timeout bounds each attempt; zero selects the client timeout.
	Timeout time.Duration
	// UseQueue routes the request through the sequential priority lane.
	UseQueue bool
	// Priority orders queued requests; higher runs sooner.
	Priority int
	// Cache serves GET and HEAD responses from the response cache while fresh.
	Cache bool
	// Retry overrides the client's retry policy.
	Retry *RetryPolicy
}

// Response is a successful (2xx) gateway response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats describes how a response was obtained.
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
	Attempts    int
	Cached      bool
}

func (r *Response) clone() *Response {
	out := *r
	out.Body = append([]byte(nil), r.Body...)
	out.Headers = r.Headers.Clone()
	return &out
}

// RequestInterceptor is called before each attempt is sent.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after each attempt receives a response.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the client configuration assembled by Builder.
type Config struct {
	BaseURL              string
	Timeout              time.Duration
	TimeoutMessage       string
	Retry                RetryPolicy
	RateLimitPerSecond   int
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CoalesceCacheMisses  bool
	Credentials          CredentialProvider
	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
}
