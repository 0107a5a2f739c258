package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the tracker authentication service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SDKClient) postAuth(ctx context.Context, path string, body any) (*AuthResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns a session for it.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	auth, err := c.postAuth(ctx, "/api/auth/register", req)
	if err != nil {
		return nil, err
	}
	return newSession(c, auth), nil
}

// Login authenticates with email and password.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	auth, err := c.postAuth(ctx, "/api/auth/login", LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return newSession(c, auth), nil
}

// RefreshToken rotates a refresh token. The presented refresh token is
// unusable afterwards whether or not the caller receives the response.
func (c *SDKClient) RefreshToken(ctx context.Context, token, refreshToken string) (*AuthResponse, error) {
	return c.postAuth(ctx, "/api/auth/refresh-token", RefreshTokenRequest{
		Token:        token,
		RefreshToken: refreshToken,
	})
}

// RevokeToken revokes every refresh token of the user token names. The call
// is authenticated with token itself, so it must still be valid.
func (c *SDKClient) RevokeToken(ctx context.Context, token string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/revoke-token", RevokeTokenRequest{Token: token}, token)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// ForgotPassword requests a reset token for email. The response is the same
// whether or not the email is registered.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/forgot-password", ForgotPasswordRequest{Email: email}, "")
	if err != nil {
		return nil, err
	}

	var out ForgotPasswordResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword redeems a reset token.
func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/reset-password", req, "")
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// NewSessionFromTokens resumes a session from a stored token pair.
func (c *SDKClient) NewSessionFromTokens(token, refreshToken string) *Session {
	return newSession(c, &AuthResponse{Token: token, RefreshToken: refreshToken})
}
