package mocks

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-observatory/httpclient"
)

// MockClient provides a testify-based mock implementation of httpclient.Client.
// Get, Post, Put, Patch and Delete are recorded as Do calls with their method.
//
// Example usage:
//
//	client := &mocks.MockClient{}
//	client.On("Do", mock.Anything, http.MethodGet, mock.MatchedBy(func(r *httpclient.Request) bool {
//		return r.URL == "/equipment/camera/info"
//	})).Return(&httpclient.Response{StatusCode: 200, Body: body}, nil)
type MockClient struct {
	mock.Mock
}

// Get implements httpclient.Client
func (m *MockClient) Get(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodGet, req)
}

// Post implements httpclient.Client
func (m *MockClient) Post(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodPost, req)
}

// Put implements httpclient.Client
func (m *MockClient) Put(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodPut, req)
}

// Patch implements httpclient.Client
func (m *MockClient) Patch(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodPatch, req)
}

// Delete implements httpclient.Client
func (m *MockClient) Delete(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return m.Do(ctx, http.MethodDelete, req)
}

// Do implements httpclient.Client
func (m *MockClient) Do(ctx context.Context, method string, req *httpclient.Request) (*httpclient.Response, error) {
	args := m.Called(ctx, method, req)
	var resp *httpclient.Response
	if v := args.Get(0); v != nil {
		resp = v.(*httpclient.Response)
	}
	return resp, args.Error(1)
}

// Close implements httpclient.Client. It succeeds unless an expectation says otherwise.
func (m *MockClient) Close() error {
	for _, call := range m.ExpectedCalls {
		if call.Method == "Close" {
			return m.Called().Error(0)
		}
	}
	return nil
}
