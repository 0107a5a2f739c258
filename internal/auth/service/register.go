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
	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/aussiebroadwan/tracker/pkg/idx"
	"github.com/aussiebroadwan/tracker/pkg/slogx"
)

// Register creates an account, assigns its role and signs the user in.
//
// User creation and role assignment are separate writes. When the role
// cannot be assigned the user is deleted again; that cleanup is best-effort
// and only logged if it fails.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (domain.AuthResult, error) {
	log := slogx.FromContext(ctx)

	if err := ctx.Err(); err != nil {
		return domain.AuthResult{}, err
	}

	if errs := req.validate(ctx); len(errs) > 0 {
		s.Metrics.Observe("register", metrics.OutcomeInvalid)
		return domain.Fail(domain.KindValidation, errs...), nil
	}

	email := domain.NormalizeEmail(req.Email)
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.DefaultRole
	}

	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		s.Metrics.Observe("register", metrics.OutcomeDuplicate)
		return domain.Fail(domain.KindDuplicate, MsgDuplicateUser), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.passwords().Hash(req.Password)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := ctx.Err(); err != nil {
		return domain.AuthResult{}, err
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			s.Metrics.Observe("register", metrics.OutcomeDuplicate)
			return domain.Fail(domain.KindDuplicate, MsgDuplicateUser), nil
		}
		return domain.AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.Store.Roles().AddUserRole(ctx, user.ID, role); err != nil {
		s.discardUser(ctx, user.ID)
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.Observe("register", metrics.OutcomeInvalid)
			return domain.Fail(domain.KindValidation, fmt.Sprintf("Role '%s' does not exist", role)), nil
		}
		return domain.AuthResult{}, fmt.Errorf("assign role: %w", err)
	}

	sess, err := s.issueSession(ctx, s.Store, user, []string{role}, httpx.ClientIP(ctx))
	if err != nil {
		return domain.AuthResult{}, err
	}

	log.Info("user registered", slog.String("user_id", user.ID), slog.String("role", role))
	s.Metrics.Observe("register", metrics.OutcomeSuccess)
	return domain.Success(user, role, sess.AccessToken, sess.RefreshToken), nil
}

// discardUser is the compensating delete for a half-finished registration.
// It runs even if ctx was cancelled.
func (s *AuthService) discardUser(ctx context.Context, userID string) {
	if err := s.Store.Users().DeleteUser(context.WithoutCancel(ctx), userID); err != nil {
		slogx.FromContext(ctx).Error("failed to remove user after role assignment failed",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}
