package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultAccessTokenTTL = 15 * time.Minute

// Authentication method references (RFC 8176) recorded in the amr claim.
const (
	AMRPassword = "pwd"
	AMROTP      = "otp" // TOTP, email code or recovery code
	AMRMFA      = "mfa"
)

// Claims are the access token claims understood by every quill service.
type Claims struct {
	jwt.RegisteredClaims

	// SID ties the access token to the refresh session it was minted for.
	SID string `json:"sid,omitempty"`

	Role  string   `json:"role,omitempty"`
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	AMR   []string `json:"amr,omitempty"`
}

// Subject is the user an access token is minted for.
type Subject struct {
	ID    string
	Role  string
	Email string
	Name  string
}

// NewAccessClaims builds claims valid from now for ttl.
func NewAccessClaims(sub Subject, sid string, amr []string, issuer string, audience []string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub.ID,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:   sid,
		Role:  sub.Role,
		Email: sub.Email,
		Name:  sub.Name,
		AMR:   amr,
	}
}

// NewJTI returns a random URL-safe token identifier.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Expiry returns exp, or the zero time when it is unset.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// HasAMR reports whether method was used to authenticate.
func (c Claims) HasAMR(method string) bool {
	return slices.Contains(c.AMR, method)
}
