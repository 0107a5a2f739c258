package domain

import (
	"strings"
	"time"
)

// Role names seeded into the roles table.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// DefaultRole is assigned when registration names no role, and reported on
// login when a user has none.
const DefaultRole = RoleUser

type User struct {
	ID           string
	Email        string // lower-cased, unique
	PasswordHash string // argon2id PHC string
	FirstName    string
	LastName     string
	Lockout      Lockout
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName is "First Last", trimmed.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
