package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned by compare-and-set writes whose expected
	// version no longer matches the stored row.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and to stop
// callers from nesting transactions.
type Store interface {
	Users() Users
	Roles() Roles
	RefreshTokens() RefreshTokens
	PasswordResets() PasswordResets

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. Returns ErrAlreadyExists when the email
	// is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// DeleteUser removes a user along with role assignments and tokens.
	DeleteUser(ctx context.Context, userID string) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateLockout stores next only if the row is still at expectedVersion,
	// otherwise it returns ErrConflict.
	UpdateLockout(ctx context.Context, userID string, expectedVersion int64, next domain.Lockout) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Roles interface {
	// AddUserRole assigns an existing role. Returns ErrNotFound when the
	// role does not exist.
	AddUserRole(ctx context.Context, userID, role string) error

	// ListUserRoles returns role names in assignment order.
	ListUserRoles(ctx context.Context, userID string) ([]string, error)

	// ListRoles returns every known role name.
	ListRoles(ctx context.Context) ([]string, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the user's token with the given
	// fingerprint, revoked or not.
	GetRefreshTokenByHash(ctx context.Context, userID, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken revokes a single token. Returns ErrNotFound when
	// the token does not exist or is already revoked.
	RevokeRefreshToken(ctx context.Context, id string, r domain.Revocation) error

	// RevokeAllUserRefreshTokens revokes every token of the user still
	// active at now and returns how many were revoked.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string, r domain.Revocation, now time.Time) (int64, error)

	// ListUserRefreshTokens returns all of a user's tokens, newest first.
	ListUserRefreshTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error)
}

type PasswordResets interface {
	// CreatePasswordReset stores a new reset token record.
	CreatePasswordReset(ctx context.Context, p domain.PasswordReset) error

	// GetPasswordResetByHash returns the reset token with the given fingerprint.
	GetPasswordResetByHash(ctx context.Context, hash string) (domain.PasswordReset, error)

	// MarkPasswordResetUsed consumes a token. Returns ErrNotFound when it
	// was already used.
	MarkPasswordResetUsed(ctx context.Context, id string, at time.Time) error

	// DeleteStalePasswordResets removes used tokens and tokens expired
	// before now. Returns the number removed.
	DeleteStalePasswordResets(ctx context.Context, now time.Time) (int64, error)
}
