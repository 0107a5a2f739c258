package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/attempts"
	authhttp "github.com/aussiebroadwan/tracker/internal/auth/http"
	"github.com/aussiebroadwan/tracker/internal/auth/metrics"
	"github.com/aussiebroadwan/tracker/internal/auth/service"
	"github.com/aussiebroadwan/tracker/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tracker/pkg/authsdk"
	"github.com/aussiebroadwan/tracker/pkg/cryptox"
	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/aussiebroadwan/tracker/pkg/jwtx"
	"github.com/aussiebroadwan/tracker/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type testServer struct {
	router *authhttp.Router
	store  *sqlite.Store
}

func newTestServer(t *testing.T, exposeResetToken bool) *testServer {
	t.Helper()
	return newProxiedTestServer(t, exposeResetToken, nil)
}

func newProxiedTestServer(t *testing.T, exposeResetToken bool, proxies *httpx.ClientIPResolver) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	tokens, err := jwtx.NewHS256(jwtx.HS256Config{
		Secret:    "0123456789abcdef0123456789abcdef",
		Issuer:    "tracker-test",
		Audience:  "tracker-clients",
		AccessTTL: time.Hour,
	})
	require.NoError(t, err)

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	tracker := attempts.NewMemory(attempts.DefaultWindow)
	svc := &service.AuthService{
		Store:    st,
		Tokens:   tokens,
		Attempts: tracker,
		Passwords: cryptox.Argon2id{Params: cryptox.Argon2Params{
			Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 16, SaltLength: 8,
		}},
		Metrics:    m,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	r := authhttp.NewRouter(tokens, "test", st, slogx.Discard())
	r.AuthService = svc
	r.Attempts = tracker
	r.Metrics = m
	r.ExposeResetToken = exposeResetToken
	r.ClientIPs = proxies
	r.ApplyRoutes()

	return &testServer{router: r, store: st}
}

type call struct {
	method string
	path   string
	body   any
	bearer string
	ip     string

	// forwardedFor is sent as X-Forwarded-For.
	forwardedFor string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var rd *bytes.Reader
	switch b := c.body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(c.method, c.path, rd)
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.ip != "" {
		req.RemoteAddr = c.ip + ":40000"
	}
	if c.forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", c.forwardedFor)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) register(t *testing.T, email string) authsdk.AuthResponse {
	t.Helper()
	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/register", body: authsdk.RegisterRequest{
		Email: email, Password: "password1", FirstName: "Ada", LastName: "Lovelace",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authsdk.AuthResponse](t, rec)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, false)

	auth := s.register(t, "Ada@Example.com")
	require.NotEmpty(t, auth.Token)
	require.NotEmpty(t, auth.RefreshToken)
	require.NotEmpty(t, auth.UserID)
	require.Equal(t, "ada@example.com", auth.Email)
	require.Equal(t, "User", auth.Role)

	tests := []struct {
		name   string
		body   any
		errors []string
	}{
		{
			name:   "duplicate",
			body:   authsdk.RegisterRequest{Email: "ada@example.com", Password: "password1", FirstName: "A", LastName: "B"},
			errors: []string{service.MsgDuplicateUser},
		},
		{
			name:   "every rule violated",
			body:   authsdk.RegisterRequest{Email: "nope", Password: "short"},
			errors: []string{service.MsgInvalidEmail, service.MsgPasswordTooShort, service.MsgNameRequired},
		},
		{
			name:   "malformed body",
			body:   `{"email":`,
			errors: []string{authsdk.MsgInvalidRequestBody},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/register", body: tt.body})
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tt.errors, decode[authsdk.ErrorResponse](t, rec).Errors)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, false)
	s.register(t, "grace@example.com")

	t.Run("wrong password", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/login", ip: "10.0.0.2",
			body: authsdk.LoginRequest{Email: "grace@example.com", Password: "wrong-password"}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, []string{"Invalid email or password. 4 attempts remaining."},
			decode[authsdk.ErrorResponse](t, rec).Errors)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/login", ip: "10.0.0.3",
			body: authsdk.LoginRequest{Email: "nobody@example.com", Password: "password1"}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, []string{service.MsgInvalidCredentials}, decode[authsdk.ErrorResponse](t, rec).Errors)
	})

	t.Run("success", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/login", ip: "10.0.0.4",
			body: authsdk.LoginRequest{Email: "grace@example.com", Password: "password1"}})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		auth := decode[authsdk.AuthResponse](t, rec)
		require.Equal(t, "Ada", auth.FirstName)
		require.Equal(t, "Lovelace", auth.LastName)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: "[]"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, []string{authsdk.MsgInvalidRequestBody}, decode[authsdk.ErrorResponse](t, rec).Errors)
	})
}

func TestRefreshAndRevoke(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, false)
	first := s.register(t, "rotate@example.com")
	other := s.register(t, "other@example.com")

	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/refresh-token",
		body: authsdk.RefreshTokenRequest{Token: first.Token, RefreshToken: first.RefreshToken}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[authsdk.AuthResponse](t, rec)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	t.Run("replay rejected", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/refresh-token",
			body: authsdk.RefreshTokenRequest{Token: first.Token, RefreshToken: first.RefreshToken}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, []string{service.MsgInvalidRefreshToken}, decode[authsdk.ErrorResponse](t, rec).Errors)
	})

	t.Run("revoke requires bearer", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/revoke-token",
			body: authsdk.RevokeTokenRequest{Token: second.Token}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("revoke of another user rejected", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/revoke-token", bearer: second.Token,
			body: authsdk.RevokeTokenRequest{Token: other.Token}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, []string{authsdk.MsgRevokeInvalidToken}, decode[authsdk.ErrorResponse](t, rec).Errors)
	})

	t.Run("revoke", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/revoke-token", bearer: second.Token,
			body: authsdk.RevokeTokenRequest{Token: second.Token}})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, authsdk.MsgTokenRevoked, decode[authsdk.MessageResponse](t, rec).Message)

		rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/refresh-token",
			body: authsdk.RefreshTokenRequest{Token: second.Token, RefreshToken: second.RefreshToken}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("revoke with empty body uses bearer", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/revoke-token", bearer: other.Token})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/refresh-token",
			body: authsdk.RefreshTokenRequest{Token: other.Token, RefreshToken: other.RefreshToken}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, true)
	auth := s.register(t, "reset@example.com")

	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/forgot-password",
		body: authsdk.ForgotPasswordRequest{Email: "reset@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	forgot := decode[authsdk.ForgotPasswordResponse](t, rec)
	require.Equal(t, authsdk.MsgForgotPassword, forgot.Message)
	require.NotEmpty(t, forgot.Token)

	t.Run("unknown email looks the same", func(t *testing.T) {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/forgot-password",
			body: authsdk.ForgotPasswordRequest{Email: "nobody@example.com"}})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[authsdk.ForgotPasswordResponse](t, rec)
		require.Equal(t, authsdk.MsgForgotPassword, resp.Message)
		require.Empty(t, resp.Token)
	})

	tests := []struct {
		name   string
		req    authsdk.ResetPasswordRequest
		errors []string
	}{
		{"missing email", authsdk.ResetPasswordRequest{Token: forgot.Token, Password: "new-password"}, []string{authsdk.MsgResetEmailRequired}},
		{"short password", authsdk.ResetPasswordRequest{Email: "reset@example.com", Token: forgot.Token, Password: "short"}, []string{service.MsgPasswordTooShort}},
		{"wrong token", authsdk.ResetPasswordRequest{Email: "reset@example.com", Token: "nope", Password: "new-password"}, []string{authsdk.MsgResetInvalid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/reset-password", body: tt.req})
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tt.errors, decode[authsdk.ErrorResponse](t, rec).Errors)
		})
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/reset-password",
		body: authsdk.ResetPasswordRequest{Email: "reset@example.com", Token: forgot.Token, Password: "new-password"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, authsdk.MsgPasswordReset, decode[authsdk.MessageResponse](t, rec).Message)

	// Sessions issued before the reset are gone.
	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/refresh-token",
		body: authsdk.RefreshTokenRequest{Token: auth.Token, RefreshToken: auth.RefreshToken}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/login", ip: "10.1.0.1",
		body: authsdk.LoginRequest{Email: "reset@example.com", Password: "new-password"}})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestForgotPasswordHidesTokenByDefault(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, false)
	s.register(t, "quiet@example.com")

	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/forgot-password",
		body: authsdk.ForgotPasswordRequest{Email: "quiet@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[authsdk.ForgotPasswordResponse](t, rec).Token)
	require.NotContains(t, rec.Body.String(), `"token"`)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, false)

	for _, path := range []string{"/livez", "/api/health"} {
		rec := s.do(t, call{method: http.MethodGet, path: path})
		require.Equal(t, http.StatusOK, rec.Code)
		health := decode[authsdk.HealthResponse](t, rec)
		require.Equal(t, "ok", health.Status)
		require.Equal(t, "test", health.Version)
	}

	rec := s.do(t, call{method: http.MethodGet, path: "/readyz"})
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[authsdk.HealthResponse](t, rec)
	require.Equal(t, &authsdk.HealthChecks{Database: "ok", Attempts: "ok"}, ready.Checks)

	require.NoError(t, s.store.Close())
	rec = s.do(t, call{method: http.MethodGet, path: "/readyz"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "degraded", decode[authsdk.HealthResponse](t, rec).Status)
}

func TestMetricsAndRequestID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, false)
	s.register(t, "metrics@example.com")

	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = s.do(t, call{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `route="POST /api/auth/register"`), body)
	require.Contains(t, body, `tracker_auth_operations_total{operation="register",outcome="success"} 1`)
}
