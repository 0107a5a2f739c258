package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/internal/auth/metrics"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
	"github.com/aussiebroadwan/tracker/pkg/cryptox"
	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/aussiebroadwan/tracker/pkg/idx"
	"github.com/aussiebroadwan/tracker/pkg/slogx"
)

var errInvalidReset = errors.New("reset token absent, used, expired or not owned")

// GeneratePasswordResetToken issues a single-use reset token. Unknown emails
// yield an empty token and no error, so callers can respond identically
// either way.
func (s *AuthService) GeneratePasswordResetToken(ctx context.Context, email string) (string, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.Observe("forgot_password", metrics.OutcomeInvalid)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.now()
	err = s.Store.PasswordResets().CreatePasswordReset(ctx, domain.PasswordReset{
		ID:        idx.NewAt(now).String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(s.resetTokenTTL()),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	log.Info("password reset token issued", slog.String("user_id", user.ID))
	s.Metrics.Observe("forgot_password", metrics.OutcomeSuccess)
	return token, nil
}

// ResetPassword redeems a reset token. Unknown emails report true so the
// response never reveals whether an account exists.
//
// On success the new hash, the consumed token, a cleared lockout and the
// revocation of every active refresh token commit together.
func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) (bool, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}

	token = strings.TrimSpace(token)
	if token == "" || len(newPassword) < MinPasswordLength {
		s.Metrics.Observe("reset_password", metrics.OutcomeInvalid)
		return false, nil
	}

	hash, err := s.passwords().Hash(newPassword)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := s.now()

		reset, err := tx.PasswordResets().GetPasswordResetByHash(ctx, cryptox.FingerprintToken(token))
		if errors.Is(err, store.ErrNotFound) {
			return errInvalidReset
		}
		if err != nil {
			return err
		}
		if reset.UserID != user.ID || !reset.Usable(now) {
			return errInvalidReset
		}

		if err := tx.PasswordResets().MarkPasswordResetUsed(ctx, reset.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errInvalidReset
			}
			return err
		}

		if err := tx.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}

		// Read inside the transaction so the version cannot move under us.
		current, err := tx.Users().GetUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		if err := tx.Users().UpdateLockout(ctx, user.ID, current.Lockout.Version, current.Lockout.RecordSuccess()); err != nil {
			return err
		}

		revoked, err = tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, user.ID, domain.Revocation{
			At:     now,
			ByIP:   httpx.ClientIP(ctx),
			Reason: domain.ReasonPasswordReset,
		}, now)
		return err
	})
	if errors.Is(err, errInvalidReset) {
		log.Info("password reset rejected", slog.String("user_id", user.ID))
		s.Metrics.Observe("reset_password", metrics.OutcomeInvalidToken)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}

	log.Info("password reset", slog.String("user_id", user.ID), slog.Int64("revoked_tokens", revoked))
	s.Metrics.TokensRevoked(revoked)
	s.Metrics.Observe("reset_password", metrics.OutcomeSuccess)
	return true, nil
}
