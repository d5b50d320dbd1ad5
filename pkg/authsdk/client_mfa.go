package authsdk

import (
	"context"
	"net/http"
)

// MFASetup starts enrolment. For TOTP the response carries the secret to
// load into an authenticator app; confirm it with MFAVerifySetup.
func (c *Client) MFASetup(ctx context.Context, method string) (*MFASetupResponse, error) {
	return call[MFASetupResponse](ctx, c, http.MethodPost, APIPrefix+"/mfa/setup", MFASetupRequest{Method: method}, http.StatusOK)
}

// MFAVerifySetup confirms a pending TOTP enrolment and returns the one-time
// backup codes.
func (c *Client) MFAVerifySetup(ctx context.Context, code string) (*MFAVerifySetupResponse, error) {
	return call[MFAVerifySetupResponse](ctx, c, http.MethodPost, APIPrefix+"/mfa/verify-setup", MFAVerifySetupRequest{Code: code}, http.StatusOK)
}

// MFAVerify answers the challenge returned by LoginV2 and completes sign in.
func (c *Client) MFAVerify(ctx context.Context, req MFAVerifyRequest) (*LoginResponse, error) {
	return call[LoginResponse](ctx, c, http.MethodPost, APIPrefix+"/mfa/verify", req, http.StatusOK)
}

// SendEmailOTP mails a fresh code for an email challenge.
func (c *Client) SendEmailOTP(ctx context.Context, mfaToken string) (*SendEmailOTPResponse, error) {
	return call[SendEmailOTPResponse](ctx, c, http.MethodPost, APIPrefix+"/mfa/send-email-otp", SendEmailOTPRequest{MFAToken: mfaToken}, http.StatusAccepted)
}

// MFADisable turns MFA off after re-checking the password.
func (c *Client) MFADisable(ctx context.Context, password string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, APIPrefix+"/mfa/disable", MFADisableRequest{Password: password})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) MFAStatus(ctx context.Context) (*MFAStatusResponse, error) {
	return call[MFAStatusResponse](ctx, c, http.MethodGet, APIPrefix+"/mfa/status", nil, http.StatusOK)
}
