package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/httpx"
)

const (
	RefreshTokenCookie = "refresh_token"

	DefaultAccessCookiePath  = "/api"
	DefaultRefreshCookiePath = "/api/auth"
)

// CookieBinder writes session tokens as browser cookies. The access token
// is visible to every API route; the refresh token only to the auth routes.
type CookieBinder struct {
	AccessPath  string
	RefreshPath string

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration
}

// NewCookieBinder takes cookie lifetimes from the token issuer so cookies
// and tokens expire together.
func NewCookieBinder(tokens *service.TokenIssuer) *CookieBinder {
	return &CookieBinder{
		AccessPath:    DefaultAccessCookiePath,
		RefreshPath:   DefaultRefreshCookiePath,
		AccessTTL:     tokens.AccessLifetime(),
		RefreshTTL:    tokens.RefreshLifetime(false),
		RememberMeTTL: tokens.RefreshLifetime(true),
	}
}

func (b *CookieBinder) cookie(name, value, path string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetAccess sets only the access token cookie.
func (b *CookieBinder) SetAccess(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, b.cookie(httpx.AccessTokenCookie, accessToken, b.AccessPath, b.AccessTTL))
}

// SetSession sets the access cookie and, when the pair carries one, the
// refresh cookie.
func (b *CookieBinder) SetSession(w http.ResponseWriter, pair domain.TokenPair) {
	b.SetAccess(w, pair.AccessToken)
	if pair.RefreshToken == "" {
		return
	}

	ttl := b.RefreshTTL
	if pair.RememberMe {
		ttl = b.RememberMeTTL
	}
	http.SetCookie(w, b.cookie(RefreshTokenCookie, pair.RefreshToken, b.RefreshPath, ttl))
}

// Clear expires both cookies. net/http renders MaxAge -1 as Max-Age=0.
func (b *CookieBinder) Clear(w http.ResponseWriter) {
	http.SetCookie(w, b.cookie(httpx.AccessTokenCookie, "", b.AccessPath, 0))
	http.SetCookie(w, b.cookie(RefreshTokenCookie, "", b.RefreshPath, 0))
}

// RefreshTokenFromRequest returns the refresh cookie value or "". A blank
// cookie counts as missing.
func RefreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
