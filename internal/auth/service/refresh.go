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
	"github.com/aussiebroadwan/tracker/pkg/slogx"
)

var errInvalidRefresh = errors.New("refresh token absent, revoked or expired")

// RefreshToken exchanges a refresh token for a new token pair. The access
// token may be expired but must otherwise verify; it names the user the
// refresh token has to belong to.
//
// Rotation is one transaction: the presented token is revoked with a guarded
// update and its replacement inserted, so of two concurrent rotations of the
// same token exactly one succeeds.
func (s *AuthService) RefreshToken(ctx context.Context, token, refreshToken string) (domain.AuthResult, error) {
	log := slogx.FromContext(ctx)
	ip := httpx.ClientIP(ctx)

	claims, err := s.Tokens.RecoverIdentity(token)
	if err != nil {
		log.Info("refresh rejected: access token did not verify", slog.Any("error", err))
		s.Metrics.Observe("refresh", metrics.OutcomeInvalidToken)
		return domain.Fail(domain.KindInvalidToken, MsgInvalidToken), nil
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.Observe("refresh", metrics.OutcomeInvalidToken)
		return domain.Fail(domain.KindInvalidToken, MsgUserNotFound), nil
	}
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		s.Metrics.Observe("refresh", metrics.OutcomeInvalidToken)
		return domain.Fail(domain.KindInvalidToken, MsgInvalidRefreshToken), nil
	}
	hash := cryptox.FingerprintToken(refreshToken)

	if err := ctx.Err(); err != nil {
		return domain.AuthResult{}, err
	}

	var (
		sess session
		role string
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := s.now()

		existing, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, user.ID, hash)
		if errors.Is(err, store.ErrNotFound) {
			return errInvalidRefresh
		}
		if err != nil {
			return err
		}
		if !existing.IsActive(now) {
			return errInvalidRefresh
		}

		roles, err := tx.Roles().ListUserRoles(ctx, user.ID)
		if err != nil {
			return err
		}
		role = primaryRole(roles)
		if len(roles) == 0 {
			roles = []string{role}
		}

		sess, err = s.issueSession(ctx, tx, user, roles, ip)
		if err != nil {
			return err
		}

		err = tx.RefreshTokens().RevokeRefreshToken(ctx, existing.ID, domain.Revocation{
			At:           now,
			ByIP:         ip,
			Reason:       domain.ReasonReplaced,
			ReplacedByID: sess.Record.ID,
		})
		if errors.Is(err, store.ErrNotFound) {
			return errInvalidRefresh
		}
		return err
	})
	if errors.Is(err, errInvalidRefresh) {
		log.Info("refresh rejected", slog.String("user_id", user.ID), slog.String("ip", ip))
		s.Metrics.Observe("refresh", metrics.OutcomeInvalidToken)
		return domain.Fail(domain.KindInvalidToken, MsgInvalidRefreshToken), nil
	}
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.Metrics.TokensRevoked(1)
	s.Metrics.Observe("refresh", metrics.OutcomeSuccess)
	return domain.Success(user, role, sess.AccessToken, sess.RefreshToken), nil
}

// RevokeToken revokes every active refresh token of the user named by the
// (possibly expired) access token. It reports false only when the token does
// not verify; a user with nothing to revoke still yields true.
func (s *AuthService) RevokeToken(ctx context.Context, token string) (bool, error) {
	log := slogx.FromContext(ctx)

	claims, err := s.Tokens.RecoverIdentity(token)
	if err != nil {
		s.Metrics.Observe("revoke", metrics.OutcomeInvalidToken)
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := s.now()
	n, err := s.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, claims.Subject, domain.Revocation{
		At:     now,
		ByIP:   httpx.ClientIP(ctx),
		Reason: domain.ReasonRevokedByUser,
	}, now)
	if err != nil {
		return false, fmt.Errorf("revoke refresh tokens: %w", err)
	}

	log.Info("refresh tokens revoked", slog.String("user_id", claims.Subject), slog.Int64("count", n))
	s.Metrics.TokensRevoked(n)
	s.Metrics.Observe("revoke", metrics.OutcomeSuccess)
	return true, nil
}
