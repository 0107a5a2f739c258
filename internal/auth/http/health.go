package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/attempts"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
	"github.com/aussiebroadwan/tracker/pkg/authsdk"
	"github.com/aussiebroadwan/tracker/pkg/httpx"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	Started time.Time
	Version string
	Store   store.Store

	// Attempts is probed only when it implements attempts.Pinger.
	Attempts attempts.Tracker
}

func (h HealthHandler) response(status string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.Started).Round(time.Second).String(),
		Version: h.Version,
	}
}

// Live godoc
//
//	@Summary		Liveness probe
//	@Description	Reports uptime and version. Always 200 while the process runs.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Router			/livez [get]
//	@Router			/api/health [get].
func (h HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.response(statusOK))
}

// Ready godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the user store and the login attempt backend.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Failure		503	{object}	authsdk.HealthResponse	"at least one dependency failed"
//	@Router			/readyz [get].
func (h HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := &authsdk.HealthChecks{
		Database: probe(ctx, h.Store.Ping),
		Attempts: statusOK,
	}
	if p, ok := h.Attempts.(attempts.Pinger); ok {
		checks.Attempts = probe(ctx, p.Ping)
	}

	res := h.response(statusOK)
	res.Checks = checks
	code := http.StatusOK
	if checks.Database != statusOK || checks.Attempts != statusOK {
		res.Status = statusDegraded
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, res)
}

func probe(ctx context.Context, ping func(context.Context) error) string {
	if err := ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return statusOK
}
