package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Messages shared by the server and clients.
const (
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An error occurred while processing your request."
	MsgRevokeInvalidToken = "Invalid token."
	MsgTokenRevoked       = "Token revoked successfully."
	MsgResetEmailRequired = "Email is required for password reset."
	MsgResetInvalid       = "Invalid token or email."
	MsgPasswordReset      = "Password has been reset successfully."
	MsgForgotPassword     = "If your email is registered, you will receive a password reset link."
)

// APIError is returned by the client for every non-2xx response.
type APIError struct {
	StatusCode int
	Errors     []string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("authsdk: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("authsdk: HTTP %d: %s", e.StatusCode, strings.Join(e.Errors, "; "))
}

// Has reports whether msg is one of the server's messages. Messages that
// carry a count are matched by prefix.
func (e *APIError) Has(msg string) bool {
	for _, m := range e.Errors {
		if m == msg || strings.HasPrefix(m, msg) {
			return true
		}
	}
	return false
}

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies that
// are not an ErrorResponse fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Errors) > 0 {
		return &APIError{StatusCode: resp.StatusCode, Errors: errResp.Errors}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Errors:     []string{http.StatusText(resp.StatusCode)},
	}
}
