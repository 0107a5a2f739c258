package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tracker/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newIssuer(t *testing.T, c *clock) *jwtx.HS256 {
	t.Helper()

	h, err := jwtx.NewHS256(jwtx.HS256Config{
		Secret:    testSecret,
		Issuer:    "tracker",
		Audience:  "tracker-api",
		AccessTTL: 15 * time.Minute,
		Now:       c.Now,
	})
	require.NoError(t, err)
	return h
}

func TestNewHS256_Configuration(t *testing.T) {
	t.Parallel()

	valid := jwtx.HS256Config{Secret: testSecret, Issuer: "i", Audience: "a", AccessTTL: time.Minute}

	tests := []struct {
		name   string
		mutate func(*jwtx.HS256Config)
		msg    string
	}{
		{"missing secret", func(c *jwtx.HS256Config) { c.Secret = "" }, "secret"},
		{"missing issuer", func(c *jwtx.HS256Config) { c.Issuer = "" }, "issuer"},
		{"missing audience", func(c *jwtx.HS256Config) { c.Audience = "" }, "audience"},
		{"short secret", func(c *jwtx.HS256Config) { c.Secret = "short" }, "at least"},
		{"zero ttl", func(c *jwtx.HS256Config) { c.AccessTTL = 0 }, "lifetime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			_, err := jwtx.NewHS256(cfg)
			require.ErrorIs(t, err, jwtx.ErrConfiguration)
			require.Contains(t, err.Error(), tt.msg)
		})
	}

	t.Run("all missing are reported together", func(t *testing.T) {
		_, err := jwtx.NewHS256(jwtx.HS256Config{AccessTTL: time.Minute})
		require.ErrorIs(t, err, jwtx.ErrConfiguration)
		require.Contains(t, err.Error(), "secret, issuer, audience")
	})

	t.Run("valid", func(t *testing.T) {
		h, err := jwtx.NewHS256(valid)
		require.NoError(t, err)
		require.Equal(t, "HS256", h.Alg())
	})
}

func TestHS256_IssueAndVerify(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now().UTC()}
	h := newIssuer(t, c)

	token, issued, err := h.Issue(jwtx.Identity{
		UserID: "user-1",
		Email:  "a@b.com",
		Name:   "A B",
		Roles:  []string{"User"},
	})
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := h.Verify(token)
	require.NoError(t, err)
	require.Equal(t, issued.ID, claims.ID)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "a@b.com", claims.Email)
	require.Equal(t, "A B", claims.Name)
	require.Equal(t, []string{"User"}, claims.Roles)
	require.Equal(t, jwt.ClaimStrings{"tracker-api"}, claims.Audience)
}

func TestHS256_VerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now().UTC()}
	h := newIssuer(t, c)

	token, _, err := h.Issue(jwtx.Identity{UserID: "user-1", Email: "a@b.com"})
	require.NoError(t, err)

	c.t = c.t.Add(16 * time.Minute)
	_, err = h.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestHS256_RecoverIdentityIgnoresLifetime(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now().UTC()}
	h := newIssuer(t, c)

	token, _, err := h.Issue(jwtx.Identity{UserID: "user-42", Email: "a@b.com"})
	require.NoError(t, err)

	// Well past expiry.
	c.t = c.t.Add(30 * 24 * time.Hour)

	claims, err := h.RecoverIdentity(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", claims.Subject)
}

func TestHS256_RecoverIdentityRejections(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now().UTC()}
	h := newIssuer(t, c)

	good, claims, err := h.Issue(jwtx.Identity{UserID: "user-1", Email: "a@b.com"})
	require.NoError(t, err)

	otherSecret, err := jwtx.NewHS256(jwtx.HS256Config{
		Secret: strings.Repeat("z", 32), Issuer: "tracker", Audience: "tracker-api", AccessTTL: time.Minute,
	})
	require.NoError(t, err)
	forged, _, err := otherSecret.Issue(jwtx.Identity{UserID: "user-1"})
	require.NoError(t, err)

	otherIssuer, err := jwtx.NewHS256(jwtx.HS256Config{
		Secret: testSecret, Issuer: "someone-else", Audience: "tracker-api", AccessTTL: time.Minute,
	})
	require.NoError(t, err)
	wrongIss, _, err := otherIssuer.Issue(jwtx.Identity{UserID: "user-1"})
	require.NoError(t, err)

	otherAudience, err := jwtx.NewHS256(jwtx.HS256Config{
		Secret: testSecret, Issuer: "tracker", Audience: "other-api", AccessTTL: time.Minute,
	})
	require.NoError(t, err)
	wrongAud, _, err := otherAudience.Issue(jwtx.Identity{UserID: "user-1"})
	require.NoError(t, err)

	// Same claims signed with HS512 using the same secret.
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	// alg=none
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject := claims
	noSubject.Subject = ""
	noSub, err := h.Sign(noSubject)
	require.NoError(t, err)

	parts := strings.Split(good, ".")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", jwtx.ErrMalformed},
		{"two segments", parts[0] + "." + parts[1], jwtx.ErrMalformed},
		{"four segments", good + ".extra", jwtx.ErrMalformed},
		{"garbage segments", "a.b.c", jwtx.ErrMalformed},
		{"wrong secret", forged, jwtx.ErrInvalidSig},
		{"tampered payload", parts[0] + "." + parts[1] + "x." + parts[2], nil},
		{"wrong issuer", wrongIss, jwtx.ErrIssuer},
		{"wrong audience", wrongAud, jwtx.ErrAudience},
		{"wrong algorithm", hs512, jwtx.ErrAlgMismatch},
		{"alg none", none, jwtx.ErrAlgMismatch},
		{"missing subject", noSub, jwtx.ErrInvalidClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.RecoverIdentity(tt.token)
			require.Error(t, err)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}
