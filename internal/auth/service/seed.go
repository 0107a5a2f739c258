package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
	"github.com/aussiebroadwan/tracker/pkg/idx"
	"github.com/aussiebroadwan/tracker/pkg/slogx"
)

var ErrInvalidSeed = errors.New("invalid admin seed")

// AdminSeed describes the administrator created on first start.
type AdminSeed struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// EnsureAdmin creates an Admin account for seed.Email unless one with that
// email already exists. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	l := slogx.FromContext(ctx)

	if seed.FirstName == "" {
		seed.FirstName = "System"
	}
	if seed.LastName == "" {
		seed.LastName = "Administrator"
	}

	req := RegisterRequest{
		Email:     seed.Email,
		Password:  seed.Password,
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
		Role:      domain.RoleAdmin,
	}
	if errs := req.validate(ctx); len(errs) > 0 {
		return false, fmt.Errorf("%w: %s", ErrInvalidSeed, strings.Join(errs, "; "))
	}

	email := domain.NormalizeEmail(seed.Email)
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		l.Debug("admin already present", slog.String("email", email))
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	hash, err := s.passwords().Hash(seed.Password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	admin := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(seed.FirstName),
		LastName:     strings.TrimSpace(seed.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, admin); err != nil {
			return err
		}
		return tx.Roles().AddUserRole(ctx, admin.ID, domain.RoleAdmin)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}

	l.Info("admin account created", slog.String("user_id", admin.ID), slog.String("email", email))
	return true, nil
}
