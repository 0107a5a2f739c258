package domain

import "time"

// Revocation reasons recorded on refresh tokens.
const (
	ReasonReplaced      = "Replaced by new token"
	ReasonRevokedByUser = "Revoked by user"
	ReasonPasswordReset = "Password reset"
)

// RefreshToken models the stored refresh token record in the DB. The opaque
// value handed to the client is never stored, only its fingerprint.
type RefreshToken struct {
	ID            string
	UserID        string
	TokenHash     string // deterministic fingerprint (base64url SHA-256)
	CreatedAt     time.Time
	ExpiresAt     time.Time
	CreatedByIP   string
	RevokedAt     *time.Time
	RevokedByIP   string
	ReasonRevoked string
	ReplacedByID  string
}

// IsActive reports whether the token can still be exchanged at now.
func (t RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// IsExpired reports whether the token's lifetime has passed at now.
func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Revocation describes why and by whom a refresh token was revoked.
type Revocation struct {
	At           time.Time
	ByIP         string
	Reason       string
	ReplacedByID string
}

// PasswordReset is a single-use reset token issued by the forgot password flow.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the reset token may still be redeemed at now.
func (p PasswordReset) Usable(now time.Time) bool {
	return p.UsedAt == nil && now.Before(p.ExpiresAt)
}
