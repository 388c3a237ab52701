package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-observatory/config"
	"github.com/gaborage/go-observatory/httpclient"
	"github.com/gaborage/go-observatory/observability"
	"github.com/gaborage/go-observatory/testing/fakegateway"
	"github.com/gaborage/go-observatory/testing/mocks"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	err = execute(context.Background(), args, &out, &errOut, func() []string { return nil })
	return out.String(), errOut.String(), err
}

func TestGetPrintsBody(t *testing.T) {
	gw := fakegateway.New(t, fakegateway.GET("/equipment/camera/info",
		fakegateway.Envelope(map[string]any{"Connected": true})))

	stdout, stderr, err := run(t, "get", "/equipment/camera/info", "--base-url", gw.URL())

	require.NoError(t, err)
	assert.Contains(t, stdout, `"Connected": true`)
	assert.Contains(t, stderr, "200 OK")
	assert.Contains(t, stderr, "attempts: 1")
}

func TestGetWithParamsAndQueue(t *testing.T) {
	gw := fakegateway.New(t, fakegateway.GET("/image/history", fakegateway.Echo()))

	_, _, err := run(t, "get", "/image/history", "--base-url", gw.URL(), "-p", "count=true", "--priority", "3")

	require.NoError(t, err)
	recorded := gw.Requests()
	require.Len(t, recorded, 1)
	assert.Equal(t, "true", recorded[0].Query.Get("count"))
}

func TestGetRejectsMalformedParam(t *testing.T) {
	gw := fakegateway.New(t)

	_, _, err := run(t, "get", "/image/history", "--base-url", gw.URL(), "-p", "novalue")

	require.Error(t, err)
	assert.Equal(t, ExitUsage, exitCode(err))
	assert.Empty(t, gw.Requests())
}

func TestGetRetriesFlag(t *testing.T) {
	gw := fakegateway.New(t, fakegateway.GET("/equipment/mount/info",
		fakegateway.Status(http.StatusServiceUnavailable, "Mount busy")))

	_, _, err := run(t, "get", "/equipment/mount/info", "--base-url", gw.URL(), "--retries", "1")

	require.Error(t, err)
	assert.True(t, httpclient.IsKind(err, httpclient.ServerError))
	assert.Equal(t, ExitGateway, exitCode(err))
	assert.Equal(t, 2, gw.Calls(http.MethodGet, "/equipment/mount/info"))
}

func TestPostSendsBody(t *testing.T) {
	gw := fakegateway.New(t, fakegateway.POST("/sequence/start", fakegateway.Echo()))

	stdout, _, err := run(t, "post", "/sequence/start", "--base-url", gw.URL(), "--data", `{"skipValidation":true}`)

	require.NoError(t, err)
	assert.Contains(t, stdout, `"skipValidation": true`)
	assert.Contains(t, stdout, `"method": "POST"`)
}

func TestPostRejectsInvalidJSON(t *testing.T) {
	_, _, err := run(t, "post", "/sequence/start", "--base-url", "http://localhost:1", "--data", `{nope`)

	assert.Equal(t, ExitUsage, exitCode(err))
}

func TestConfigFileAndToken(t *testing.T) {
	gw := fakegateway.New(t, fakegateway.GET("/equipment/camera/info", fakegateway.Echo()))
	path := filepath.Join(t.TempDir(), "observatory.yaml")
	content := "gateway:\n  baseurl: " + gw.URL() + "\nauth:\n  token: yaml-token\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	stdout, _, err := run(t, "get", "/equipment/camera/info", "--config", path)

	require.NoError(t, err)
	assert.Contains(t, stdout, `"authorization": "Bearer yaml-token"`)
}

func TestInvalidBaseURLIsConfigError(t *testing.T) {
	_, _, err := run(t, "get", "/x", "--base-url", "not a url")

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ExitConfig, exitCode(err))
}

func TestInvalidExportEndpointIsConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observatory.yaml")
	content := "trace:\n  enabled: true\nexport:\n  endpoint: http://collector:4318\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, _, err := run(t, "get", "/equipment/camera/info", "--config", path)

	require.ErrorIs(t, err, observability.ErrInvalidEndpointFormat)
	assert.Equal(t, ExitConfig, exitCode(err))
}

func TestStatusTable(t *testing.T) {
	gw := fakegateway.New(t,
		fakegateway.GET("/equipment/camera/info", fakegateway.Envelope(map[string]any{"Connected": true})),
		fakegateway.GET("/equipment/mount/info", fakegateway.Envelope(map[string]any{"Connected": false})),
		fakegateway.GET("/sequence/json", fakegateway.EnvelopeFailure(http.StatusOK, "No sequence loaded")),
	)

	stdout, _, err := run(t, "status", "--base-url", gw.URL())

	require.NoError(t, err)
	assert.Contains(t, stdout, "DEVICE")
	assert.Regexp(t, `camera\s+connected`, stdout)
	assert.Regexp(t, `mount\s+disconnected`, stdout)
	assert.Regexp(t, `focuser\s+error`, stdout)
	assert.Contains(t, stdout, "No sequence loaded")
	for _, ep := range statusEndpoints {
		assert.Equal(t, 1, gw.Calls(http.MethodGet, ep.Path), ep.Path)
	}
}

func TestStatusJSON(t *testing.T) {
	gw := fakegateway.New(t, fakegateway.GET("/equipment/weather/info",
		fakegateway.Envelope(map[string]any{"Connected": true, "Temperature": 4.5})))

	stdout, _, err := run(t, "status", "--json", "--base-url", gw.URL())
	require.NoError(t, err)

	var results []deviceStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, len(statusEndpoints))
	for _, r := range results {
		if r.Name == "weather" {
			assert.Empty(t, r.Error)
			require.NotNil(t, r.Connected)
			assert.True(t, *r.Connected)
			continue
		}
		assert.NotEmpty(t, r.Error, r.Name)
	}
}

func TestStatusAllFailed(t *testing.T) {
	gw := fakegateway.New(t)

	_, _, err := run(t, "status", "--base-url", gw.URL())

	assert.ErrorIs(t, err, errAllFailed)
	assert.Equal(t, ExitGateway, exitCode(err))
}

func TestMetricsFlagExportsToStderr(t *testing.T) {
	gw := fakegateway.New(t, fakegateway.GET("/equipment/camera/info", fakegateway.Envelope(nil)))

	_, stderr, err := run(t, "get", "/equipment/camera/info", "--base-url", gw.URL(), "--metrics")

	require.NoError(t, err)
	assert.Contains(t, stderr, "gateway.client.requests")
}

func TestTraceFlagExportsSpansToStderr(t *testing.T) {
	gw := fakegateway.New(t, fakegateway.GET("/equipment/focuser/info", fakegateway.Envelope(nil)))

	_, stderr, err := run(t, "get", "/equipment/focuser/info", "--base-url", gw.URL(), "--trace")

	require.NoError(t, err)
	assert.Contains(t, stderr, "gatewayctl get")
	assert.Contains(t, stderr, "gateway GET")
	assert.NotEmpty(t, gw.Requests()[0].Header.Get("Traceparent"))
}

func TestPollStatusWithMockClient(t *testing.T) {
	client := &mocks.MockClient{}
	body := []byte(`{"Success":true,"Response":{"Connected":true},"StatusCode":200,"Type":"API"}`)
	client.On("Do", mock.Anything, http.MethodGet, mock.MatchedBy(func(r *httpclient.Request) bool {
		return r.URL == "/equipment/camera/info" && r.Cache
	})).Return(&httpclient.Response{StatusCode: 200, Body: body}, nil)
	client.On("Do", mock.Anything, http.MethodGet, mock.Anything).
		Return(nil, &httpclient.APIError{Kind: httpclient.NetworkError, Message: "no route"})

	results, err := pollStatus(context.Background(), client, true)
	require.NoError(t, err)

	require.Len(t, results, len(statusEndpoints))
	assert.Equal(t, "camera", results[0].Name)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "NetworkError: no route", results[1].Error)
	client.AssertNumberOfCalls(t, "Do", len(statusEndpoints))
}

func TestPollStatusCancelled(t *testing.T) {
	client := &mocks.MockClient{}
	client.On("Do", mock.Anything, http.MethodGet, mock.Anything).
		Return(nil, &httpclient.APIError{Kind: httpclient.CancelError, Message: "Request canceled"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pollStatus(ctx, client, false)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, exitCode(nil))
	assert.Equal(t, ExitInterrupt, exitCode(context.Canceled))
	assert.Equal(t, ExitInterrupt, exitCode(&httpclient.APIError{Kind: httpclient.CancelError}))
	assert.Equal(t, ExitRequest, exitCode(&httpclient.APIError{Kind: httpclient.ClientError}))
	assert.Equal(t, ExitGateway, exitCode(&httpclient.APIError{Kind: httpclient.TimeoutError}))
	assert.Equal(t, ExitGeneral, exitCode(errors.New("boom")))
}
