package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCredentialProvider provides a testify-based mock implementation of
// httpclient.CredentialProvider.
type MockCredentialProvider struct {
	mock.Mock
}

// Token implements httpclient.CredentialProvider
func (m *MockCredentialProvider) Token(ctx context.Context) (string, bool) {
	args := m.Called(ctx)
	return args.String(0), args.Bool(1)
}

// ExpectToken sets up a Token expectation returning token on every call.
func (m *MockCredentialProvider) ExpectToken(token string, ok bool) *mock.Call {
	return m.On("Token", mock.Anything).Return(token, ok)
}
