package httpclient

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticToken(t *testing.T) {
	token, ok := StaticToken("abc").Token(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = StaticToken("").Token(context.Background())
	assert.False(t, ok)
}

func TestEnvToken(t *testing.T) {
	t.Setenv("OBSERVATORY_TEST_TOKEN", "  from-env \n")
	token, ok := EnvToken("OBSERVATORY_TEST_TOKEN").Token(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "from-env", token)

	_, ok = EnvToken("OBSERVATORY_TEST_TOKEN_UNSET").Token(context.Background())
	assert.False(t, ok)
}

func TestFileTokenReadsEachCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	provider := FileToken(path)

	_, ok := provider.Token(context.Background())
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))
	token, ok := provider.Token(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "first", token)

	require.NoError(t, os.WriteFile(path, []byte("rotated"), 0o600))
	token, _ = provider.Token(context.Background())
	assert.Equal(t, "rotated", token)
}

func TestBearerTokenInterceptor(t *testing.T) {
	newReq := func() *http.Request {
		req, err := http.NewRequest(http.MethodGet, "http://gw/x", nil)
		require.NoError(t, err)
		return req
	}

	t.Run("sets_header", func(t *testing.T) {
		req := newReq()
		require.NoError(t, NewBearerTokenInterceptor(StaticToken("abc"))(context.Background(), req))
		assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
	})

	t.Run("no_token_no_header", func(t *testing.T) {
		req := newReq()
		require.NoError(t, NewBearerTokenInterceptor(StaticToken(""))(context.Background(), req))
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("keeps_explicit_header", func(t *testing.T) {
		req := newReq()
		req.Header.Set("Authorization", "Basic xyz")
		require.NoError(t, NewBearerTokenInterceptor(StaticToken("abc"))(context.Background(), req))
		assert.Equal(t, "Basic xyz", req.Header.Get("Authorization"))
	})

	t.Run("nil_provider", func(t *testing.T) {
		req := newReq()
		require.NoError(t, NewBearerTokenInterceptor(nil)(context.Background(), req))
		assert.Empty(t, req.Header.Get("Authorization"))
	})
}
