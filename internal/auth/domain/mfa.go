package domain

import (
	"fmt"
	"time"
)

// MFAKind names an MFA method on the wire and in storage.
type MFAKind string

const (
	MFAKindTOTP     MFAKind = "totp"
	MFAKindEmail    MFAKind = "email"
	MFAKindRecovery MFAKind = "recovery" // backup code, only valid alongside TOTP
)

// ParseMFAKind accepts totp, email and recovery.
func ParseMFAKind(s string) (MFAKind, error) {
	switch k := MFAKind(s); k {
	case MFAKindTOTP, MFAKindEmail, MFAKindRecovery:
		return k, nil
	default:
		return "", fmt.Errorf("unknown mfa method %q", s)
	}
}

// MFAMethod is the second factor a user is enrolled with. The set of
// implementations is closed: TOTPMethod and EmailMethod.
type MFAMethod interface {
	Kind() MFAKind
	isMFAMethod()
}

// TOTPMethod is an authenticator app seeded with a base32 secret.
type TOTPMethod struct {
	Secret string
}

func (TOTPMethod) Kind() MFAKind { return MFAKindTOTP }
func (TOTPMethod) isMFAMethod()  {}

// EmailMethod sends a one-time code to the account email per challenge.
type EmailMethod struct{}

func (EmailMethod) Kind() MFAKind { return MFAKindEmail }
func (EmailMethod) isMFAMethod()  {}

// NewMFAMethod rebuilds a method from its stored kind and secret.
func NewMFAMethod(kind MFAKind, secret string) (MFAMethod, error) {
	switch kind {
	case MFAKindTOTP:
		if secret == "" {
			return nil, fmt.Errorf("totp method without secret")
		}
		return TOTPMethod{Secret: secret}, nil
	case MFAKindEmail:
		return EmailMethod{}, nil
	default:
		return nil, fmt.Errorf("unknown mfa method %q", kind)
	}
}

// VerificationKinds lists what a challenge for m may be answered with.
func VerificationKinds(m MFAMethod) []MFAKind {
	switch m.(type) {
	case TOTPMethod:
		return []MFAKind{MFAKindTOTP, MFAKindRecovery}
	case EmailMethod:
		return []MFAKind{MFAKindEmail}
	default:
		return nil
	}
}

// MFAChallenge is a pending second-factor step of a login. Only the
// fingerprint of its token is stored.
type MFAChallenge struct {
	ID           string
	TokenHash    string
	UserID       string
	Method       MFAKind
	RememberMe   bool
	IssueRefresh bool // v2 logins finish with a refresh token
	Attempts     int
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// EmailOTP is a code mailed for one challenge.
type EmailOTP struct {
	ID          string
	ChallengeID string
	UserID      string
	CodeHash    string
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}

// TOTPEnrollment is what a client needs to add the account to an
// authenticator app.
type TOTPEnrollment struct {
	Secret  string
	URL     string // otpauth:// URI for QR codes
	Issuer  string
	Account string
}

type MFAStatus struct {
	Enabled              bool
	Method               MFAKind
	PendingSetup         bool
	BackupCodesRemaining int
}
