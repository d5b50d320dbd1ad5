package service

import (
	"errors"
	"time"
)

// Client facing failures. The HTTP layer maps each onto one wire code; any
// other error is a server error.
var (
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrInvalidOrExpiredToken = errors.New("invalid_or_expired_token")
	ErrInvalidCode           = errors.New("invalid_code")
	ErrAccountInactive       = errors.New("account_inactive")
	ErrTooManyRequests       = errors.New("too_many_requests")
	ErrInvalidRequest        = errors.New("invalid_request")
	ErrWeakPassword          = errors.New("weak_password")
	ErrCaptchaFailed         = errors.New("captcha_failed")
	ErrEmailUnavailable      = errors.New("email_unavailable")
	ErrMFAAlreadyEnabled     = errors.New("mfa_already_enabled")
	ErrMFANotEnabled         = errors.New("mfa_not_enabled")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not_found")
)

// ReasonError attaches a client-safe explanation to one of the sentinels.
type ReasonError struct {
	Kind   error
	Reason string
}

func (e *ReasonError) Error() string { return e.Kind.Error() + ": " + e.Reason }
func (e *ReasonError) Unwrap() error { return e.Kind }

func withReason(kind error, reason string) error {
	return &ReasonError{Kind: kind, Reason: reason}
}

// Reason returns the explanation carried by err, or "".
func Reason(err error) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
