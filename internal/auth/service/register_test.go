package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/internal/auth/service"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("issues tokens carrying email and role", func(t *testing.T) {
		f := newFixture(t)
		res := f.register(t, "A@B.com")

		require.Equal(t, "a@b.com", res.Email)
		require.Equal(t, domain.RoleUser, res.Role)
		require.Equal(t, "Ada", res.FirstName)
		require.Equal(t, "Lovelace", res.LastName)
		require.NotEmpty(t, res.UserID)
		require.NotEmpty(t, res.RefreshToken)
		require.Empty(t, res.Errors)

		claims, err := f.tokens.Verify(res.Token)
		require.NoError(t, err)
		require.Equal(t, res.UserID, claims.Subject)
		require.Equal(t, "a@b.com", claims.Email)
		require.Equal(t, "Ada Lovelace", claims.Name)
		require.True(t, claims.HasRole(domain.RoleUser))
		require.NotEmpty(t, claims.ID)

		tokens, err := f.store.RefreshTokens().ListUserRefreshTokens(context.Background(), res.UserID)
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		require.Equal(t, "10.0.0.1", tokens[0].CreatedByIP)
		require.True(t, f.clock.Now().Add(7*24*time.Hour).Equal(tokens[0].ExpiresAt))
	})

	t.Run("reports every violated rule", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Register(context.Background(), service.RegisterRequest{
			Email:     "not-an-email",
			Password:  "short",
			FirstName: "  ",
		})
		require.NoError(t, err)
		require.False(t, res.Succeeded)
		require.Equal(t, domain.KindValidation, res.Kind)
		require.Equal(t, []string{
			service.MsgInvalidEmail,
			service.MsgPasswordTooShort,
			service.MsgNameRequired,
		}, res.Errors)
	})

	t.Run("each rule alone", func(t *testing.T) {
		f := newFixture(t)
		valid := service.RegisterRequest{Email: "x@y.io", Password: testPassword, FirstName: "A", LastName: "B"}

		tests := []struct {
			name   string
			mutate func(*service.RegisterRequest)
			want   string
		}{
			{"email", func(r *service.RegisterRequest) { r.Email = "x@y" }, service.MsgInvalidEmail},
			{"password", func(r *service.RegisterRequest) { r.Password = "1234567" }, service.MsgPasswordTooShort},
			{"last name", func(r *service.RegisterRequest) { r.LastName = "" }, service.MsgNameRequired},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := valid
				tt.mutate(&req)
				res, err := f.svc.Register(context.Background(), req)
				require.NoError(t, err)
				require.Equal(t, []string{tt.want}, res.Errors)
			})
		}
	})

	t.Run("duplicate email fails regardless of password or case", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "dup@example.com")

		res, err := f.svc.Register(context.Background(), service.RegisterRequest{
			Email: "DUP@example.com", Password: "another-password", FirstName: "B", LastName: "C",
		})
		require.NoError(t, err)
		require.False(t, res.Succeeded)
		require.Equal(t, domain.KindDuplicate, res.Kind)
		require.Equal(t, []string{service.MsgDuplicateUser}, res.Errors)
	})

	t.Run("unknown role removes the new user", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Register(context.Background(), service.RegisterRequest{
			Email: "wizard@example.com", Password: testPassword, FirstName: "W", LastName: "Z", Role: "Wizard",
		})
		require.NoError(t, err)
		require.False(t, res.Succeeded)
		require.Equal(t, domain.KindValidation, res.Kind)
		require.Equal(t, []string{"Role 'Wizard' does not exist"}, res.Errors)

		_, err = f.store.Users().GetUserByEmail(context.Background(), "wizard@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("explicit role", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Register(context.Background(), service.RegisterRequest{
			Email: "boss@example.com", Password: testPassword, FirstName: "B", LastName: "S", Role: domain.RoleAdmin,
		})
		require.NoError(t, err)
		require.True(t, res.Succeeded)
		require.Equal(t, domain.RoleAdmin, res.Role)
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.svc.Register(ctx, service.RegisterRequest{
			Email: "c@example.com", Password: testPassword, FirstName: "C", LastName: "D",
		})
		require.ErrorIs(t, err, context.Canceled)

		empty, err := f.store.Users().IsEmpty(context.Background())
		require.NoError(t, err)
		require.True(t, empty)
	})
}
