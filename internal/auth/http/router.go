package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/attempts"
	"github.com/aussiebroadwan/tracker/internal/auth/metrics"
	"github.com/aussiebroadwan/tracker/internal/auth/service"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/aussiebroadwan/tracker/pkg/jwtx"
	"github.com/aussiebroadwan/tracker/pkg/slogx"

	_ "github.com/aussiebroadwan/tracker/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthService *service.AuthService
	Attempts    attempts.Tracker
	Metrics     *metrics.Auth // Optional: nil disables /metrics

	// ClientIPs decides which forwarding headers to believe. Nil keys every
	// request on its socket peer.
	ClientIPs *httpx.ClientIPResolver

	// ExposeResetToken returns reset tokens from forgot-password. Only for
	// non-production debugging where no mail is sent.
	ExposeResetToken bool
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	return r
}

// ApplyRoutes registers every route and freezes the middleware chain. It
// must run once, before the router serves.
func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	// Outermost first. The metrics middleware sits directly on the mux so
	// it can read the matched pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.ClientIPMiddleware(r.ClientIPs),
	}

	r.handler = httpx.Chain(r.Metrics.Middleware(r.Mux), r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Tracker Authentication Service API
//	@version		0.1.0
//	@description	Registration, login, refresh token rotation and password reset for the incident tracker.
//	@description
//	@description				Access tokens are HS256 signed JWTs. Refresh tokens are opaque and single use.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/tracker
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Auth:             r.AuthService,
		ExposeResetToken: r.ExposeResetToken,
	}

	// Credential endpoints - strict rate limit by IP. The service adds its
	// own per-IP and per-account lockout on top.
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.Register),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.Login),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/forgot-password",
		httpx.Chain(http.HandlerFunc(h.ForgotPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.ResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Token endpoints - moderate rate limit
	r.Mux.Handle("POST /api/auth/refresh-token",
		httpx.Chain(http.HandlerFunc(h.RefreshToken),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/revoke-token",
		httpx.Chain(http.HandlerFunc(h.RevokeToken),
			httpx.AuthnMiddleware(r.verifier), // verify JWT (iss/aud/exp)
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	h := HealthHandler{
		Started:  r.startTime,
		Version:  r.buildVersion,
		Store:    r.store,
		Attempts: r.Attempts,
	}

	// Probes are polled by orchestrators, so they get the lenient profile.
	live := httpx.Chain(http.HandlerFunc(h.Live), httpx.RateLimitByIP(httpx.LenientLimit))
	r.Mux.Handle("GET /livez", live)
	r.Mux.Handle("GET /api/health", live)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(h.Ready), httpx.RateLimitByIP(httpx.LenientLimit)),
	)

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
