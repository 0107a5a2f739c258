package domain

// Kind classifies a failed AuthResult so transports can choose a status code.
type Kind string

const (
	KindNone           Kind = ""
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindDuplicate      Kind = "duplicate"
	KindLocked         Kind = "locked"
	KindInvalidToken   Kind = "invalid_token"
)

// AuthResult is returned by every auth operation. Strings are empty rather
// than absent and Errors is never nil.
type AuthResult struct {
	Succeeded    bool
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	Errors       []string
	Kind         Kind
}

// Fail builds a failed result carrying msgs in order.
func Fail(kind Kind, msgs ...string) AuthResult {
	errs := make([]string, 0, len(msgs))
	errs = append(errs, msgs...)
	return AuthResult{Errors: errs, Kind: kind}
}

// Success builds a successful result for u.
func Success(u User, role, token, refresh string) AuthResult {
	return AuthResult{
		Succeeded:    true,
		Token:        token,
		RefreshToken: refresh,
		UserID:       u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         role,
		Errors:       []string{},
	}
}
