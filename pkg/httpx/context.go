package httpx

import (
	"context"

	"github.com/aussiebroadwan/tracker/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID   ctxKey = "user_id"
	CtxKeyClaims   ctxKey = "claims"
	CtxKeyClientIP ctxKey = "client_ip"
)

// LoopbackIP is reported when a request carries no usable client address.
const LoopbackIP = "127.0.0.1"

// WithClientIP stores the caller's address for code below the HTTP layer.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, CtxKeyClientIP, ip)
}

// ClientIP returns the caller's address, or LoopbackIP when none was
// recorded.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(CtxKeyClientIP).(string); ok && ip != "" {
		return ip
	}
	return LoopbackIP
}

// ClaimsFromContext returns the verified access token claims set by
// AuthnMiddleware.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}
