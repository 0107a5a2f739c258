package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/internal/auth/metrics"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
	"github.com/aussiebroadwan/tracker/pkg/cryptox"
	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/aussiebroadwan/tracker/pkg/slogx"
)

// Login verifies credentials for the client IP found in ctx.
//
// Two independent counters guard against guessing. The per-IP counter is
// checked before any store access and grows on unknown emails and wrong
// passwords. The per-account counter grows on wrong passwords and locks the
// account at the policy maximum. Attempts against an already locked account
// are rejected without touching either counter.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.AuthResult, error) {
	log := slogx.FromContext(ctx)
	ip := httpx.ClientIP(ctx)
	policy := s.lockoutPolicy()

	if err := ctx.Err(); err != nil {
		return domain.AuthResult{}, err
	}

	if !validEmail(ctx, email) || strings.TrimSpace(password) == "" {
		s.Metrics.Observe("login", metrics.OutcomeInvalid)
		return domain.Fail(domain.KindAuthentication, MsgInvalidCredentials), nil
	}

	count, err := s.Attempts.Count(ctx, ip)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("read attempts: %w", err)
	}
	if count >= policy.MaxFailedAttempts {
		log.Warn("login throttled by ip", slog.String("ip", ip), slog.Int("attempts", count))
		s.Metrics.Observe("login", metrics.OutcomeIPThrottled)
		return domain.Fail(domain.KindLocked, s.throttledMessage()), nil
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		if err := ctx.Err(); err != nil {
			return domain.AuthResult{}, err
		}
		if _, err := s.Attempts.TrackFailedAttempt(ctx, ip); err != nil {
			return domain.AuthResult{}, fmt.Errorf("track attempt: %w", err)
		}
		s.Metrics.Observe("login", metrics.OutcomeInvalid)
		return domain.Fail(domain.KindAuthentication, MsgInvalidCredentials), nil
	}
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	if user.Lockout.IsLocked(now) {
		log.Info("login rejected for locked account", slog.String("user_id", user.ID))
		s.Metrics.Observe("login", metrics.OutcomeLocked)
		return domain.Fail(domain.KindLocked, lockedMessage(user.Lockout.RemainingMinutes(now))), nil
	}

	err = s.passwords().Verify(password, user.PasswordHash)
	if errors.Is(err, cryptox.ErrPasswordMismatch) {
		return s.loginFailed(ctx, user, ip)
	}
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("verify password: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.AuthResult{}, err
	}

	if user.Lockout.Dirty() {
		_, err := s.transitionLockout(ctx, user, domain.Lockout.RecordSuccess)
		if errors.Is(err, errLockoutContention) {
			log.Warn("lockout reset lost to concurrent updates", slog.String("user_id", user.ID))
		} else if err != nil {
			return domain.AuthResult{}, fmt.Errorf("reset lockout: %w", err)
		}
	}
	if err := s.Attempts.Reset(ctx, ip); err != nil {
		return domain.AuthResult{}, fmt.Errorf("reset attempts: %w", err)
	}

	roles, err := s.Store.Roles().ListUserRoles(ctx, user.ID)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("list roles: %w", err)
	}
	role := primaryRole(roles)
	if len(roles) == 0 {
		roles = []string{role}
	}

	sess, err := s.issueSession(ctx, s.Store, user, roles, ip)
	if err != nil {
		return domain.AuthResult{}, err
	}

	log.Info("login succeeded", slog.String("user_id", user.ID), slog.String("ip", ip))
	s.Metrics.Observe("login", metrics.OutcomeSuccess)
	return domain.Success(user, role, sess.AccessToken, sess.RefreshToken), nil
}

// loginFailed records a wrong password against both the account and the IP.
func (s *AuthService) loginFailed(ctx context.Context, user domain.User, ip string) (domain.AuthResult, error) {
	log := slogx.FromContext(ctx)
	policy := s.lockoutPolicy()
	now := s.now()

	if err := ctx.Err(); err != nil {
		return domain.AuthResult{}, err
	}

	next, err := s.transitionLockout(ctx, user, func(l domain.Lockout) domain.Lockout {
		return l.RecordFailure(now, policy)
	})
	if errors.Is(err, errLockoutContention) {
		log.Warn("failed attempt lost to concurrent updates", slog.String("user_id", user.ID))
	} else if err != nil {
		return domain.AuthResult{}, fmt.Errorf("record failure: %w", err)
	}

	if _, err := s.Attempts.TrackFailedAttempt(ctx, ip); err != nil {
		return domain.AuthResult{}, fmt.Errorf("track attempt: %w", err)
	}

	if next.IsLocked(now) {
		log.Warn("account locked", slog.String("user_id", user.ID), slog.String("ip", ip))
		s.Metrics.AccountLocked()
		s.Metrics.Observe("login", metrics.OutcomeLocked)
		return domain.Fail(domain.KindLocked, lockedMessage(next.RemainingMinutes(now))), nil
	}

	remaining := policy.MaxFailedAttempts - next.FailedAccessCount
	log.Info("login failed", slog.String("user_id", user.ID), slog.String("ip", ip), slog.Int("remaining", remaining))
	s.Metrics.Observe("login", metrics.OutcomeInvalid)
	return domain.Fail(domain.KindAuthentication,
		fmt.Sprintf("%s. %d attempts remaining.", MsgInvalidCredentials, remaining)), nil
}

func lockedMessage(minutes int) string {
	return fmt.Sprintf("Account is locked out. Please try again in %d minutes.", minutes)
}

func (s *AuthService) throttledMessage() string {
	minutes := int(math.Ceil(s.attemptWindow().Minutes()))
	return fmt.Sprintf("Too many failed attempts. Please try again in %d minutes.", minutes)
}
