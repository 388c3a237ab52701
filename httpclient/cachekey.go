package httpclient

import (
	nethttp "net/http"
	"net/url"
	"strings"
)

// CacheKey builds the cache key of a request: the method and the absolute
// URL with its query parameters in sorted order.
func CacheKey(method, target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return strings.ToUpper(method) + " " + target
	}
	u.RawQuery = u.Query().Encode()
	u.Fragment = ""
	return strings.ToUpper(method) + " " + u.String()
}

func isSafeMethod(method string) bool {
	return method == nethttp.MethodGet || method == nethttp.MethodHead
}
