package authsdk

import (
	"context"
	"net/http"
)

// Login calls the legacy login endpoint. The access token is returned in the
// body and set as a cookie; no refresh token is issued.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	return call[LoginResponse](ctx, c, http.MethodPost, APIPrefix+"/login", req, http.StatusOK)
}

// LoginV2 signs in with cookie-only tokens. When the account has MFA enabled
// the response carries an MFA challenge instead; finish it with MFAVerify.
func (c *Client) LoginV2(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	return call[LoginResponse](ctx, c, http.MethodPost, APIPrefix+"/login/v2", req, http.StatusOK)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	return call[LoginResponse](ctx, c, http.MethodPost, APIPrefix+"/register", req, http.StatusCreated)
}

// Refresh rotates the stored refresh token and renews the access token.
func (c *Client) Refresh(ctx context.Context) (*LoginResponse, error) {
	return call[LoginResponse](ctx, c, http.MethodPost, APIPrefix+"/refresh", nil, http.StatusOK)
}

// Logout revokes the session and clears the cookies. It succeeds even when
// no session exists.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, APIPrefix+"/logout", nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// Verify reports whether the current access token is valid.
func (c *Client) Verify(ctx context.Context) (*VerifyResponse, error) {
	return call[VerifyResponse](ctx, c, http.MethodGet, APIPrefix+"/verify", nil, http.StatusOK)
}

// ForgotPassword asks for a reset link. The server answers the same whether
// or not the email belongs to an account.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, APIPrefix+"/password/forgot", ForgotPasswordRequest{Email: email})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// ResetPassword sets a new password using a reset token. Every session of
// the account is signed out.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, APIPrefix+"/password/reset", ResetPasswordRequest{
		Token:    token,
		Password: password,
	})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
