package service

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// emailPattern accepts anything shaped like local@domain.tld.
var emailPattern = regexp.MustCompile(`(?i)^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	emailMatchTimeout = 250 * time.Millisecond
	maxEmailLength    = 254
)

// validEmail reports whether email looks like an address. The match is
// bounded by emailMatchTimeout and a timeout counts as invalid.
func validEmail(ctx context.Context, email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > maxEmailLength {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, emailMatchTimeout)
	defer cancel()

	// Buffered so the matcher never blocks once we stop waiting.
	done := make(chan bool, 1)
	go func() { done <- emailPattern.MatchString(email) }()

	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// validate reports every violated rule, in form order.
func (r RegisterRequest) validate(ctx context.Context) []string {
	var errs []string
	if !validEmail(ctx, r.Email) {
		errs = append(errs, MsgInvalidEmail)
	}
	if len(r.Password) < MinPasswordLength {
		errs = append(errs, MsgPasswordTooShort)
	}
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		errs = append(errs, MsgNameRequired)
	}
	return errs
}
