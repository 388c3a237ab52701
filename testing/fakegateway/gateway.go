// Package fakegateway runs an in-process stand-in for the automation backend.
package fakegateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// ServiceName names the server spans the gateway records.
const ServiceName = "fakegateway"

// APIPrefix is the path every route is mounted under.
const APIPrefix = "/v2/api"

// Route is one endpoint served by the gateway.
type Route struct {
	Method  string
	Path    string
	Handler echo.HandlerFunc
}

// GET declares a GET route.
func GET(path string, h echo.HandlerFunc) Route {
	return Route{Method: http.MethodGet, Path: path, Handler: h}
}

// POST declares a POST route.
func POST(path string, h echo.HandlerFunc) Route {
	return Route{Method: http.MethodPost, Path: path, Handler: h}
}

// RecordedRequest is a request as received by the gateway.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	At     time.Time
}

// Gateway is a running fake backend. It is closed by t.Cleanup.
type Gateway struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
}

// New starts a gateway serving routes. Routes are fixed once it is running.
func New(t testing.TB, routes ...Route) *Gateway {
	t.Helper()

	g := &Gateway{}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware(ServiceName))
	e.Use(g.record)

	api := e.Group(APIPrefix)
	for _, r := range routes {
		api.Add(r.Method, r.Path, r.Handler)
	}

	g.server = httptest.NewServer(e)
	t.Cleanup(g.server.Close)
	return g
}

// URL returns the base URL clients should be configured with.
func (g *Gateway) URL() string {
	return g.server.URL + APIPrefix
}

// Close stops the server early. It is safe to call before the test cleanup runs.
func (g *Gateway) Close() {
	g.server.Close()
}

// Requests returns a copy of every request received so far.
func (g *Gateway) Requests() []RecordedRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RecordedRequest(nil), g.requests...)
}

// Calls counts requests received for method and path (relative to APIPrefix).
func (g *Gateway) Calls(method, path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.requests {
		if r.Method == method && r.Path == APIPrefix+path {
			n++
		}
	}
	return n
}

func (g *Gateway) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		g.mu.Lock()
		g.requests = append(g.requests, RecordedRequest{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Header: req.Header.Clone(),
			At:     time.Now(),
		})
		g.mu.Unlock()
		return next(c)
	}
}

// envelope mirrors the backend's response wrapper.
type envelope struct {
	Success    bool   `json:"Success"`
	Response   any    `json:"Response"`
	Error      string `json:"Error"`
	StatusCode int    `json:"StatusCode"`
	Type       string `json:"Type"`
}

// Envelope answers 200 with a successful envelope around payload.
func Envelope(payload any) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, envelope{Success: true, Response: payload, StatusCode: http.StatusOK, Type: "API"})
	}
}

// EnvelopeFailure answers with status and an unsuccessful envelope.
func EnvelopeFailure(status int, message string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(status, envelope{Success: false, Error: message, StatusCode: status, Type: "API"})
	}
}

// Status answers with status and a {"message": ...} body.
func Status(status int, message string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(status, map[string]string{"message": message})
	}
}

// FailFirst answers the first n calls with status, then delegates to next.
func FailFirst(n int, status int, next echo.HandlerFunc) echo.HandlerFunc {
	var calls atomic.Int64
	return func(c echo.Context) error {
		if calls.Add(1) <= int64(n) {
			return c.JSON(status, map[string]string{"message": http.StatusText(status)})
		}
		return next(c)
	}
}

// Delay waits d, or until the client goes away, before delegating to next.
func Delay(d time.Duration, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		select {
		case <-time.After(d):
		case <-c.Request().Context().Done():
			return nil
		}
		return next(c)
	}
}

// Echo answers with an envelope describing the request it received.
func Echo() echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body := map[string]any{
			"method":        req.Method,
			"query":         req.URL.Query(),
			"authorization": req.Header.Get("Authorization"),
		}
		var payload any
		if req.ContentLength != 0 {
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			body["body"] = payload
		}
		return Envelope(body)(c)
	}
}
