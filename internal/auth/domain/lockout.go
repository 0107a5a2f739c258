package domain

import (
	"math"
	"time"
)

// Default lockout policy values.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 15 * time.Minute
)

// LockoutPolicy configures per-account brute-force protection.
type LockoutPolicy struct {
	MaxFailedAttempts int
	Duration          time.Duration
}

// DefaultLockoutPolicy locks an account for 15 minutes after 5 failures.
var DefaultLockoutPolicy = LockoutPolicy{
	MaxFailedAttempts: DefaultMaxFailedAttempts,
	Duration:          DefaultLockoutDuration,
}

// Lockout is the per-account failure state. It moves between Active and
// Locked only through the methods below, which are pure and leave storage to
// the caller. Version is bumped on every transition so writers can detect a
// concurrent update.
type Lockout struct {
	FailedAccessCount int
	LockoutEnd        *time.Time
	Version           int64
}

// IsLocked reports whether the account rejects logins at now. A lockout whose
// end has passed counts as Active.
func (l Lockout) IsLocked(now time.Time) bool {
	return l.LockoutEnd != nil && now.Before(*l.LockoutEnd)
}

// RemainingMinutes is the lockout time left at now, rounded up, and never
// less than 1 while locked.
func (l Lockout) RemainingMinutes(now time.Time) int {
	if !l.IsLocked(now) {
		return 0
	}
	return max(int(math.Ceil(l.LockoutEnd.Sub(now).Minutes())), 1)
}

// RecordFailure returns the state after one more wrong password. Reaching
// the policy maximum locks the account until now+Duration and starts a fresh
// count.
func (l Lockout) RecordFailure(now time.Time, p LockoutPolicy) Lockout {
	next := Lockout{
		FailedAccessCount: l.FailedAccessCount + 1,
		LockoutEnd:        l.LockoutEnd,
		Version:           l.Version + 1,
	}

	if p.MaxFailedAttempts > 0 && next.FailedAccessCount >= p.MaxFailedAttempts {
		end := now.Add(p.Duration)
		next.FailedAccessCount = 0
		next.LockoutEnd = &end
	}

	return next
}

// RecordSuccess returns the cleared state after a successful login or reset.
func (l Lockout) RecordSuccess() Lockout {
	return Lockout{Version: l.Version + 1}
}

// Dirty reports whether RecordSuccess would change anything.
func (l Lockout) Dirty() bool {
	return l.FailedAccessCount != 0 || l.LockoutEnd != nil
}
