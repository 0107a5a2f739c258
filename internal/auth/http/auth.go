package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/internal/auth/service"
	"github.com/aussiebroadwan/tracker/pkg/authsdk"
	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/aussiebroadwan/tracker/pkg/slogx"
)

// AuthHandler serves /api/auth/*. Request and response bodies are the
// authsdk wire types.
type AuthHandler struct {
	Auth             *service.AuthService
	ExposeResetToken bool
}

func writeErrors(w http.ResponseWriter, code int, msgs ...string) {
	httpx.WriteJSON(w, code, authsdk.ErrorResponse{Errors: msgs})
}

// writeInternal logs err and hides it from the caller.
func writeInternal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slogx.FromContext(r.Context()).Error(msg, slog.Any("error", err))
	writeErrors(w, http.StatusInternalServerError, authsdk.MsgInternalError)
}

// writeResult writes a successful result as an AuthResponse and a failed one
// with failStatus.
func writeResult(w http.ResponseWriter, res domain.AuthResult, failStatus int) {
	if !res.Succeeded {
		writeErrors(w, failStatus, res.Errors...)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.AuthResponse{
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		UserID:       res.UserID,
		Email:        res.Email,
		FirstName:    res.FirstName,
		LastName:     res.LastName,
		Role:         res.Role,
	})
}

// Register godoc
//
//	@Summary		Register
//	@Description	Creates an account with the User role and signs it in. Every violated rule is reported.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"New account"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation failure or duplicate email"
//	@Failure		429		{object}	authsdk.ErrorResponse
//	@Failure		500		{object}	authsdk.ErrorResponse
//	@Router			/api/auth/register [post].
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgInvalidRequestBody)
		return
	}

	res, err := h.Auth.Register(r.Context(), service.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeInternal(w, r, "register failed", err)
		return
	}
	writeResult(w, res, http.StatusBadRequest)
}

// Login godoc
//
//	@Summary		Login
//	@Description	Authenticates with email and password. Repeated failures lock the account and throttle the client IP.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"malformed body"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid credentials, locked account or throttled IP"
//	@Failure		429		{object}	authsdk.ErrorResponse
//	@Failure		500		{object}	authsdk.ErrorResponse
//	@Router			/api/auth/login [post].
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgInvalidRequestBody)
		return
	}

	res, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeInternal(w, r, "login failed", err)
		return
	}
	writeResult(w, res, http.StatusUnauthorized)
}

// RefreshToken godoc
//
//	@Summary		Rotate refresh token
//	@Description	Exchanges a refresh token and the last access token, which may be expired, for a new pair.
//	@Description	The presented refresh token can never be used again.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshTokenRequest	true	"Token pair"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		500		{object}	authsdk.ErrorResponse
//	@Router			/api/auth/refresh-token [post].
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshTokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgInvalidRequestBody)
		return
	}

	res, err := h.Auth.RefreshToken(r.Context(), req.Token, req.RefreshToken)
	if err != nil {
		writeInternal(w, r, "refresh failed", err)
		return
	}
	writeResult(w, res, http.StatusBadRequest)
}

// RevokeToken godoc
//
//	@Summary		Revoke refresh tokens
//	@Description	Revokes every active refresh token of the caller. The body token defaults to the bearer token
//	@Description	and must name the same user.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.RevokeTokenRequest	false	"Token naming the user"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		"missing or invalid bearer token"
//	@Failure		500		{object}	authsdk.ErrorResponse
//	@Router			/api/auth/revoke-token [post].
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RevokeTokenRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			writeErrors(w, http.StatusBadRequest, authsdk.MsgInvalidRequestBody)
			return
		}
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		token, _ = httpx.BearerToken(r)
	}

	// A caller may only revoke their own sessions.
	caller, _ := httpx.ClaimsFromContext(ctx)
	named, err := h.Auth.Tokens.RecoverIdentity(token)
	if err != nil || named.Subject != caller.Subject {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgRevokeInvalidToken)
		return
	}

	ok, err := h.Auth.RevokeToken(ctx, token)
	if err != nil {
		writeInternal(w, r, "revoke failed", err)
		return
	}
	if !ok {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgRevokeInvalidToken)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: authsdk.MsgTokenRevoked})
}

// ForgotPassword godoc
//
//	@Summary		Request password reset
//	@Description	Issues a one hour reset token. The response does not reveal whether the email is registered.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	authsdk.ForgotPasswordResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		500		{object}	authsdk.ErrorResponse
//	@Router			/api/auth/forgot-password [post].
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgInvalidRequestBody)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeErrors(w, http.StatusBadRequest, service.MsgInvalidEmail)
		return
	}

	token, err := h.Auth.GeneratePasswordResetToken(r.Context(), req.Email)
	if err != nil {
		writeInternal(w, r, "forgot password failed", err)
		return
	}

	resp := authsdk.ForgotPasswordResponse{Message: authsdk.MsgForgotPassword}
	if h.ExposeResetToken {
		resp.Token = token
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// ResetPassword godoc
//
//	@Summary		Reset password
//	@Description	Redeems a reset token. Success revokes every refresh token and clears any account lockout.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Reset token and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		500		{object}	authsdk.ErrorResponse
//	@Router			/api/auth/reset-password [post].
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgInvalidRequestBody)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgResetEmailRequired)
		return
	}
	if len(req.Password) < service.MinPasswordLength {
		writeErrors(w, http.StatusBadRequest, service.MsgPasswordTooShort)
		return
	}

	ok, err := h.Auth.ResetPassword(r.Context(), req.Email, req.Token, req.Password)
	if err != nil {
		writeInternal(w, r, "reset password failed", err)
		return
	}
	if !ok {
		writeErrors(w, http.StatusBadRequest, authsdk.MsgResetInvalid)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: authsdk.MsgPasswordReset})
}
