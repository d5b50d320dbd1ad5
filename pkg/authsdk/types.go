package authsdk

import (
	"time"

	"github.com/aussiebroadwan/quill/pkg/jwtx"
)

// MFA method names used on the wire.
const (
	MFAMethodTOTP     = "totp"
	MFAMethodEmail    = "email"
	MFAMethodRecovery = "recovery"
)

// ErrorResponse is the JSON shape of APIError.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RememberMe     bool   `json:"remember_me,omitempty"`
	RecaptchaToken string `json:"recaptcha_token,omitempty"`
}

type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	DisplayName    string `json:"display_name,omitempty"`
	RememberMe     bool   `json:"remember_me,omitempty"`
	RecaptchaToken string `json:"recaptcha_token,omitempty"`
}

// LoginResponse is returned by login, register, refresh and MFA verify.
// Either MFARequired is set together with MFAToken and MFAMethods, or the
// session cookies were set and User describes the signed in account.
type LoginResponse struct {
	MFARequired bool     `json:"mfa_required,omitempty"`
	MFAToken    string   `json:"mfa_token,omitempty"`
	MFAMethods  []string `json:"mfa_methods,omitempty"`

	// AccessToken is only echoed in the body by the legacy login endpoint.
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime, or the challenge lifetime
	// when MFARequired is set, in seconds.
	ExpiresIn int `json:"expires_in,omitempty"`

	User *UserInfo `json:"user,omitempty"`
}

type UserInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	MFAEnabled  bool   `json:"mfa_enabled"`
}

// VerifyResponse reports who the presented access token belongs to.
type VerifyResponse struct {
	Valid    bool     `json:"valid"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type MFASetupRequest struct {
	Method string `json:"method"`
}

// MFASetupResponse carries the TOTP secret and provisioning URI, or reports
// that email codes are enabled.
type MFASetupResponse struct {
	Method     string `json:"method"`
	Enabled    bool   `json:"enabled"`
	Secret     string `json:"secret,omitempty"`
	OTPAuthURL string `json:"otpauth_url,omitempty"`
	Issuer     string `json:"issuer,omitempty"`
	Account    string `json:"account,omitempty"`
}

type MFAVerifySetupRequest struct {
	Code string `json:"code"`
}

type MFAVerifySetupResponse struct {
	Enabled     bool     `json:"enabled"`
	BackupCodes []string `json:"backup_codes"`
}

type MFAVerifyRequest struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code"`
	// Method defaults to the method the account is enrolled with.
	Method string `json:"method,omitempty"`
}

type SendEmailOTPRequest struct {
	MFAToken string `json:"mfa_token"`
}

type SendEmailOTPResponse struct {
	Sent      bool `json:"sent"`
	ExpiresIn int  `json:"expires_in"`
}

type MFADisableRequest struct {
	Password string `json:"password"`
}

type MFAStatusResponse struct {
	Enabled              bool   `json:"enabled"`
	Method               string `json:"method,omitempty"`
	PendingSetup         bool   `json:"pending_setup"`
	BackupCodesRemaining int    `json:"backup_codes_remaining"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AcceptedResponse is the body of 202 responses that hide whether any work
// was done.
type AcceptedResponse struct {
	Status string `json:"status"`
}

type SessionInfo struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	RememberMe bool      `json:"remember_me"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Current    bool      `json:"current"`
}

type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime,omitempty"`
	Version   string        `json:"version,omitempty"`
	Checks    *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks are the readiness probes, each "ok" or "fail".
type HealthChecks struct {
	Database string `json:"database"`
	Keys     string `json:"keys"`
	Denylist string `json:"denylist,omitempty"`
}

type JWKSResponse jwtx.JWKS
