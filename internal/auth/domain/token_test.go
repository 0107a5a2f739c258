package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenIsActive(t *testing.T) {
	t.Parallel()

	now := time.Now()
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name  string
		token domain.RefreshToken
		want  bool
	}{
		{"unexpired and unrevoked", domain.RefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", domain.RefreshToken{ExpiresAt: now.Add(-time.Hour)}, false},
		{"expires exactly now", domain.RefreshToken{ExpiresAt: now}, false},
		{"revoked", domain.RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.token.IsActive(now))
		})
	}
}

func TestPasswordResetUsable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	used := now

	require.True(t, domain.PasswordReset{ExpiresAt: now.Add(time.Hour)}.Usable(now))
	require.False(t, domain.PasswordReset{ExpiresAt: now.Add(-time.Hour)}.Usable(now))
	require.False(t, domain.PasswordReset{ExpiresAt: now.Add(time.Hour), UsedAt: &used}.Usable(now))
}

func TestResultHelpers(t *testing.T) {
	t.Parallel()

	failed := domain.Fail(domain.KindValidation)
	require.False(t, failed.Succeeded)
	require.NotNil(t, failed.Errors)
	require.Empty(t, failed.Errors)

	u := domain.User{ID: "u1", Email: "a@b.com", FirstName: "A", LastName: "B"}
	ok := domain.Success(u, domain.RoleUser, "jwt", "refresh")
	require.True(t, ok.Succeeded)
	require.Equal(t, domain.KindNone, ok.Kind)
	require.Equal(t, "A B", u.FullName())
	require.Equal(t, "a@b.com", domain.NormalizeEmail("  A@B.com "))
}
