package domain

import "time"

// TokenPair is the outcome of a successful sign in or refresh.
// RefreshToken is empty for logins that do not issue one.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	RememberMe       bool
	SessionID        string
}

// RefreshToken models the stored refresh token record in the DB.
type RefreshToken struct {
	ID         string
	UserID     string
	SessionID  string // stable across rotations of one sign in
	TokenHash  string // base64url SHA-256 of the opaque token
	AMR        []string
	RememberMe bool
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// PasswordReset is a single use reset link token.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
