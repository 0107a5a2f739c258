package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestLockoutRecordFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := domain.DefaultLockoutPolicy

	t.Run("counts up until the maximum", func(t *testing.T) {
		var l domain.Lockout
		for i := 1; i < policy.MaxFailedAttempts; i++ {
			l = l.RecordFailure(now, policy)
			require.Equal(t, i, l.FailedAccessCount)
			require.False(t, l.IsLocked(now))
		}
		require.EqualValues(t, policy.MaxFailedAttempts-1, l.Version)
	})

	t.Run("locks and resets count at the maximum", func(t *testing.T) {
		l := domain.Lockout{FailedAccessCount: policy.MaxFailedAttempts - 1}
		l = l.RecordFailure(now, policy)

		require.Zero(t, l.FailedAccessCount)
		require.True(t, l.IsLocked(now))
		require.Equal(t, now.Add(policy.Duration), *l.LockoutEnd)
		require.Equal(t, 15, l.RemainingMinutes(now))
	})

	t.Run("lockout expires back to active", func(t *testing.T) {
		end := now.Add(-time.Second)
		l := domain.Lockout{LockoutEnd: &end}
		require.False(t, l.IsLocked(now))
		require.Zero(t, l.RemainingMinutes(now))
	})

	t.Run("zero maximum never locks", func(t *testing.T) {
		l := domain.Lockout{}.RecordFailure(now, domain.LockoutPolicy{})
		require.Equal(t, 1, l.FailedAccessCount)
		require.Nil(t, l.LockoutEnd)
	})
}

func TestLockoutRemainingMinutesRoundsUp(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		left time.Duration
		want int
	}{
		{time.Second, 1},
		{time.Minute, 1},
		{time.Minute + time.Second, 2},
		{14*time.Minute + 30*time.Second, 15},
	}

	for _, tt := range tests {
		end := now.Add(tt.left)
		l := domain.Lockout{LockoutEnd: &end}
		require.Equal(t, tt.want, l.RemainingMinutes(now), tt.left.String())
	}
}

func TestLockoutRecordSuccess(t *testing.T) {
	t.Parallel()

	end := time.Now().Add(time.Hour)
	l := domain.Lockout{FailedAccessCount: 3, LockoutEnd: &end, Version: 7}
	require.True(t, l.Dirty())

	cleared := l.RecordSuccess()
	require.Zero(t, cleared.FailedAccessCount)
	require.Nil(t, cleared.LockoutEnd)
	require.EqualValues(t, 8, cleared.Version)
	require.False(t, cleared.Dirty())
}
