package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshSkew is how long before expiry an access token is rotated.
const refreshSkew = 30 * time.Second

// ErrNoRefreshToken is returned when a session has to refresh but holds no
// refresh token.
var ErrNoRefreshToken = errors.New("authsdk: access token expired and no refresh token available")

// Session represents an authenticated session with automatic token refresh.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         AuthResponse

	// now is swapped in tests.
	now func() time.Time
}

// newSession creates a new authenticated session from an auth response.
func newSession(client *SDKClient, auth *AuthResponse) *Session {
	s := &Session{client: client, now: time.Now}
	s.store(auth)
	return s
}

// store must be called with mu held for writing, or before the session is
// shared.
func (s *Session) store(auth *AuthResponse) {
	s.accessToken = auth.Token
	s.refreshToken = auth.RefreshToken
	s.expiresAt = tokenExpiry(auth.Token).Add(-refreshSkew)
	s.user = *auth
	s.user.Token, s.user.RefreshToken = "", ""
}

// tokenExpiry reads exp without verifying the signature. The server remains
// the authority; this only decides when to refresh. Unreadable tokens are
// treated as already expired.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Token returns a valid access token, automatically refreshing if it is
// about to expire.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if s.now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Refresh rotates the token pair regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return ErrNoRefreshToken
	}

	auth, err := s.client.RefreshToken(ctx, s.accessToken, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.store(auth)
	return nil
}

// Revoke revokes every refresh token of the session's user, on every
// device, and clears the local refresh token.
func (s *Session) Revoke(ctx context.Context) error {
	token, err := s.Token(ctx)
	if err != nil {
		return err
	}

	if err := s.client.RevokeToken(ctx, token); err != nil {
		return err
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()
	return nil
}

// User returns the identity from the last auth response, without tokens.
func (s *Session) User() AuthResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer Token which handles refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// ExpiresAt returns when the session will next refresh.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}
