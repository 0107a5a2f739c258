package jwtx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret accepted, matching the SHA-256
// block output size.
const MinSecretLength = 32

// HS256Config configures the symmetric token issuer. Secret, Issuer and
// Audience are all required.
type HS256Config struct {
	Secret    string
	Issuer    string
	Audience  string
	AccessTTL time.Duration

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// HS256 issues and validates HMAC-SHA256 signed access tokens for a single
// issuer/audience pair.
type HS256 struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewHS256 validates cfg and returns an issuer. Any missing value is reported
// as ErrConfiguration so callers can fail fast at startup.
func NewHS256(cfg HS256Config) (*HS256, error) {
	var missing []string
	if cfg.Secret == "" {
		missing = append(missing, "secret")
	}
	if cfg.Issuer == "" {
		missing = append(missing, "issuer")
	}
	if cfg.Audience == "" {
		missing = append(missing, "audience")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrConfiguration, MinSecretLength)
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: access token lifetime must be positive", ErrConfiguration)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &HS256{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.AccessTTL,
		now:      now,
	}, nil
}

func (h *HS256) Alg() string              { return jwt.SigningMethodHS256.Alg() }
func (h *HS256) Issuer() string           { return h.issuer }
func (h *HS256) Audience() string         { return h.audience }
func (h *HS256) AccessTTL() time.Duration { return h.ttl }

// Issue signs a fresh access token for id and returns it with its claims.
func (h *HS256) Issue(id Identity) (string, Claims, error) {
	claims := NewClaims(id, h.issuer, []string{h.audience}, h.ttl, h.now().UTC())
	signed, err := h.Sign(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Sign signs arbitrary claims with the issuer secret.
func (h *HS256) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify fully validates a token, lifetime included.
func (h *HS256) Verify(token string) (Claims, error) {
	return h.parse(token, true)
}

// RecoverIdentity validates algorithm, signature, issuer and audience but
// skips exp/nbf. It exists for the refresh and revoke flows, which must accept
// an access token that has already expired.
func (h *HS256) RecoverIdentity(token string) (Claims, error) {
	return h.parse(token, false)
}

func (h *HS256) parse(raw string, checkLifetime bool) (Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return Claims{}, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		switch {
		case token != nil && token.Method != nil && token.Method.Alg() != jwt.SigningMethodHS256.Alg():
			return Claims{}, ErrAlgMismatch
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, fmt.Errorf("jwtx: parse: %w", err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidClaim
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidClaim
	}

	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience([]string{h.audience}); err != nil {
		return Claims{}, err
	}
	if checkLifetime {
		if err := claims.ValidateExpiry(h.now()); err != nil {
			return Claims{}, err
		}
	}

	return *claims, nil
}
