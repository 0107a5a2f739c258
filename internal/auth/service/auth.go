package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/attempts"
	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/internal/auth/metrics"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
	"github.com/aussiebroadwan/tracker/pkg/cryptox"
	"github.com/aussiebroadwan/tracker/pkg/idx"
	"github.com/aussiebroadwan/tracker/pkg/jwtx"
)

// User facing messages. Credential failures never say which field was wrong
// or whether the email is registered.
const (
	MsgInvalidEmail        = "Invalid email address"
	MsgPasswordTooShort    = "Password must be at least 8 characters long"
	MsgNameRequired        = "First name and last name are required"
	MsgDuplicateUser       = "User with this email already exists"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgInvalidToken        = "Invalid token"
	MsgUserNotFound        = "User not found"
	MsgInvalidRefreshToken = "Invalid refresh token"
)

// MinPasswordLength applies to registration and password reset.
const MinPasswordLength = 8

// DefaultResetTokenTTL is how long a password reset token stays redeemable.
const DefaultResetTokenTTL = time.Hour

// PasswordHasher is satisfied by cryptox.Argon2id. Verify must return
// cryptox.ErrPasswordMismatch for a wrong password.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) error
}

// AuthService implements registration, login, refresh rotation, revocation
// and password reset. Validation and credential failures come back inside
// domain.AuthResult; the error return is reserved for store failures and
// cancellation.
type AuthService struct {
	Store     store.Store
	Tokens    *jwtx.HS256
	Attempts  attempts.Tracker
	Passwords PasswordHasher
	Metrics   *metrics.Auth

	RefreshTTL    time.Duration
	ResetTokenTTL time.Duration
	Lockout       domain.LockoutPolicy

	// AttemptWindow is only used to phrase the per-IP throttle message and
	// should match the tracker's window.
	AttemptWindow time.Duration

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) passwords() PasswordHasher {
	if s.Passwords != nil {
		return s.Passwords
	}
	return cryptox.Argon2id{}
}

func (s *AuthService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

func (s *AuthService) resetTokenTTL() time.Duration {
	if s.ResetTokenTTL > 0 {
		return s.ResetTokenTTL
	}
	return DefaultResetTokenTTL
}

func (s *AuthService) lockoutPolicy() domain.LockoutPolicy {
	if s.Lockout.MaxFailedAttempts > 0 {
		return s.Lockout
	}
	return domain.DefaultLockoutPolicy
}

func (s *AuthService) attemptWindow() time.Duration {
	if s.AttemptWindow > 0 {
		return s.AttemptWindow
	}
	return attempts.DefaultWindow
}

// session is a freshly issued token pair. The refresh record is already
// persisted by the time a session is returned.
type session struct {
	AccessToken  string
	RefreshToken string
	Record       domain.RefreshToken
}

// issueSession signs an access token for u and stores a new refresh token
// through q, which may be a transaction.
func (s *AuthService) issueSession(
	ctx context.Context,
	q store.Store,
	u domain.User,
	roles []string,
	ip string,
) (session, error) {
	access, _, err := s.Tokens.Issue(jwtx.Identity{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.FullName(),
		Roles:  roles,
	})
	if err != nil {
		return session{}, err
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return session{}, err
	}

	now := s.now()
	record := domain.RefreshToken{
		ID:          idx.NewAt(now).String(),
		UserID:      u.ID,
		TokenHash:   cryptox.FingerprintToken(refresh),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.refreshTTL()),
		CreatedByIP: ip,
	}
	if err := q.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return session{}, fmt.Errorf("store refresh token: %w", err)
	}

	return session{AccessToken: access, RefreshToken: refresh, Record: record}, nil
}

// primaryRole is the first assigned role, or the default when none.
func primaryRole(roles []string) string {
	if len(roles) == 0 {
		return domain.DefaultRole
	}
	return roles[0]
}

const maxLockoutRetries = 3

var errLockoutContention = errors.New("lockout update kept conflicting")

// transitionLockout applies step to the user's lockout state with a
// compare-and-set, re-reading and re-applying on conflict. A stale writer
// therefore never overwrites a newer state, it builds on top of it. When
// every attempt conflicts it returns the last stored state alongside
// errLockoutContention, never an unsaved one.
func (s *AuthService) transitionLockout(
	ctx context.Context,
	u domain.User,
	step func(domain.Lockout) domain.Lockout,
) (domain.Lockout, error) {
	current := u.Lockout
	for range maxLockoutRetries {
		next := step(current)
		err := s.Store.Users().UpdateLockout(ctx, u.ID, current.Version, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return domain.Lockout{}, err
		}

		fresh, err := s.Store.Users().GetUserByID(ctx, u.ID)
		if err != nil {
			return domain.Lockout{}, err
		}
		current = fresh.Lockout
	}
	return current, errLockoutContention
}
