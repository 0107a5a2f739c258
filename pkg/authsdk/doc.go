/*
Package authsdk provides the wire types and a client SDK for the tracker
authentication service.

# Overview

The server encodes its responses with the types in this package, so the
client and the handlers can never drift apart. Two client types cover the
API:

  - SDKClient: unauthenticated operations (register, login, password reset,
    health) and the entry point for creating sessions
  - Session: holds a token pair and refreshes it before the access token
    expires

Create an SDKClient and log in:

	client := authsdk.NewSDKClient("https://tracker.example.com")

	session, err := client.Login(ctx, "ada@example.com", "correct horse")
	if err != nil {
		var apiErr *authsdk.APIError
		if errors.As(err, &apiErr) {
			fmt.Println(apiErr.StatusCode, apiErr.Errors)
		}
		return err
	}

	// Token returns a valid access token, rotating the refresh token when
	// the access token is about to expire.
	token, err := session.Token(ctx)

	// Revoke every refresh token issued to this user.
	err = session.Revoke(ctx)

# Password reset

	resp, err := client.ForgotPassword(ctx, "ada@example.com")
	// resp.Token is only populated by servers running in debug mode.
	err = client.ResetPassword(ctx, authsdk.ResetPasswordRequest{
		Email:    "ada@example.com",
		Token:    token,
		Password: "new password",
	})

# Error Handling

Every non-2xx response is returned as *APIError carrying the HTTP status and
the server's error list.

# Thread Safety

Sessions are safe for concurrent use. Concurrent callers of Session.Token
share a single refresh.
*/
package authsdk
