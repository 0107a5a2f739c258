package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestClientIPResolver(t *testing.T) {
	t.Parallel()

	res, err := httpx.NewClientIPResolver([]string{"10.0.0.0/8", " 192.168.1.1 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "203.0.113.9:12345", nil, "203.0.113.9"},
		{"remote addr without port", "203.0.113.9", nil, "203.0.113.9"},
		{"untrusted peer ignores X-Forwarded-For", "198.51.100.7:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "198.51.100.7"},
		{"untrusted peer ignores X-Real-IP", "198.51.100.7:1", map[string]string{"X-Real-IP": "203.0.113.2"}, "198.51.100.7"},
		{"trusted peer uses X-Forwarded-For", "10.1.2.3:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "203.0.113.1"},
		{"skips trusted hops from the right", "10.1.2.3:1", map[string]string{"X-Forwarded-For": "6.6.6.6, 203.0.113.1, 10.9.9.9"}, "203.0.113.1"},
		{"single trusted address", "192.168.1.1:1", map[string]string{"X-Real-IP": " 203.0.113.2 "}, "203.0.113.2"},
		{"all hops trusted", "10.1.2.3:1", map[string]string{"X-Forwarded-For": "10.0.0.5, 10.0.0.6"}, "10.0.0.5"},
		{"blank headers fall back to peer", "10.1.2.3:1", map[string]string{"X-Forwarded-For": " , "}, "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, res.IP(req))
		})
	}
}

func TestNewClientIPResolverRejectsGarbage(t *testing.T) {
	_, err := httpx.NewClientIPResolver([]string{"not-an-ip"})
	require.Error(t, err)

	_, err = httpx.NewClientIPResolver([]string{"10.0.0.0/99"})
	require.Error(t, err)
}

func TestClientIPMiddleware(t *testing.T) {
	var got, key string
	h := httpx.ClientIPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = httpx.ClientIP(r.Context())
		key = httpx.IPKeyExtractor(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:4444"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "198.51.100.7", got)
	require.Equal(t, "198.51.100.7", key)
}

func TestClientIPFallback(t *testing.T) {
	require.Equal(t, httpx.LoopbackIP, httpx.ClientIP(context.Background()))
	require.Equal(t, httpx.LoopbackIP, httpx.ClientIP(httpx.WithClientIP(context.Background(), "")))
}
