package httpclient

import (
	"context"
	"os"
	"strings"
)

// CredentialProvider supplies the bearer token for outbound calls. It is
// consulted on every attempt; ok=false means no token and is not an error.
type CredentialProvider interface {
	Token(ctx context.Context) (token string, ok bool)
}

// TokenFunc adapts a function to CredentialProvider.
type TokenFunc func(ctx context.Context) (string, bool)

// Token implements CredentialProvider.
func (f TokenFunc) Token(ctx context.Context) (string, bool) {
	return f(ctx)
}

// StaticToken always returns token. An empty token means no credentials.
func StaticToken(token string) CredentialProvider {
	return TokenFunc(func(context.Context) (string, bool) {
		return token, token != ""
	})
}

// EnvToken reads the environment variable name on every call.
func EnvToken(name string) CredentialProvider {
	return TokenFunc(func(context.Context) (string, bool) {
		v, ok := os.LookupEnv(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	})
}

// FileToken reads the token from path on every call so rotated tokens are
// picked up without restarting. A missing or empty file means no token.
func FileToken(path string) CredentialProvider {
	return TokenFunc(func(context.Context) (string, bool) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		v := strings.TrimSpace(string(data))
		return v, v != ""
	})
}
