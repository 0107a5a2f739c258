// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeDuplicate    = "duplicate"
	OutcomeLocked       = "locked"
	OutcomeIPThrottled  = "ip_throttled"
	OutcomeInvalidToken = "invalid_token"
	OutcomeError        = "error"
)

// Auth groups the service and HTTP collectors. A nil *Auth is valid and
// records nothing.
type Auth struct {
	gatherer prometheus.Gatherer

	operations    *prometheus.CounterVec
	lockouts      prometheus.Counter
	revokedTokens prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
// Registering twice on the same registry fails.
func New(reg *prometheus.Registry) (*Auth, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Auth{
		gatherer: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "auth",
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after too many failed logins.",
		}),
		revokedTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "auth",
			Name:      "refresh_tokens_revoked_total",
			Help:      "Refresh tokens revoked by rotation, logout or password reset.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tracker",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.lockouts, m.revokedTokens, m.httpRequests, m.httpDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}

	return m, nil
}

// Observe counts one finished operation.
func (m *Auth) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// AccountLocked counts an account entering lockout.
func (m *Auth) AccountLocked() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

// TokensRevoked adds n revoked refresh tokens.
func (m *Auth) TokensRevoked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revokedTokens.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Auth) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the matched
// route pattern. It must wrap the ServeMux directly: the mux sets
// r.Pattern on the request it receives.
func (m *Auth) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}
