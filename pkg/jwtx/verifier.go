package jwtx

import "errors"

// Verifier checks a bearer token, including its lifetime, and returns its
// claims. *HS256 implements it.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var ErrConfiguration = errors.New("jwtx: invalid configuration")

// Token rejections. RecoverIdentity never returns ErrExpired or
// ErrNotYetValid.
var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrAlgMismatch  = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

var _ Verifier = (*HS256)(nil)
