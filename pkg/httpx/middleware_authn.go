package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/aussiebroadwan/quill/pkg/slogx"
)

// AccessTokenCookie is the cookie browsers present the access token in.
const AccessTokenCookie = "access_token"

// Denylist answers whether an access token was revoked before its expiry.
type Denylist interface {
	IsAccessTokenDenied(ctx context.Context, jti string) (bool, error)
}

// AccessTokenFromRequest returns the bearer token, falling back to the
// access token cookie.
func AccessTokenFromRequest(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if scheme, token, ok := strings.Cut(authz, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// authenticate verifies the request token. ok is false when there is no
// usable token; err is non-nil only when the denylist could not be read.
func authenticate(r *http.Request, v jwtx.Verifier, deny Denylist) (jwtx.Claims, string, bool, error) {
	raw := AccessTokenFromRequest(r)
	if raw == "" {
		return jwtx.Claims{}, "", false, nil
	}

	claims, err := v.Verify(raw)
	if err != nil {
		slogx.FromContext(r.Context()).Debug("access token rejected", "err", err)
		return jwtx.Claims{}, "", false, nil
	}

	if deny != nil && claims.ID != "" {
		denied, err := deny.IsAccessTokenDenied(r.Context(), claims.ID)
		if err != nil {
			return jwtx.Claims{}, "", false, err
		}
		if denied {
			return jwtx.Claims{}, "", false, nil
		}
	}
	return claims, raw, true, nil
}

// AuthnMiddleware rejects requests without a valid, non-revoked access
// token. deny may be nil.
func AuthnMiddleware(v jwtx.Verifier, deny Denylist) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, raw, ok, err := authenticate(r, v, deny)
			if err != nil {
				slogx.FromContext(r.Context()).Error("denylist lookup failed", "err", err)
				WriteJSON(w, http.StatusInternalServerError, map[string]string{
					"error":             "server_error",
					"error_description": "internal server error",
				})
				return
			}
			if !ok {
				writeBearerError(w, "access token missing, invalid or expired")
				return
			}
			next.ServeHTTP(w, r.WithContext(contextWithAuth(r.Context(), raw, claims)))
		})
	}
}

// OptionalAuthn attaches claims when a valid token is present and lets the
// request through either way.
func OptionalAuthn(v jwtx.Verifier, deny Denylist) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, raw, ok, err := authenticate(r, v, deny)
			if err != nil {
				slogx.FromContext(r.Context()).Error("denylist lookup failed", "err", err)
			}
			if ok {
				r = r.WithContext(contextWithAuth(r.Context(), raw, claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows only callers whose role claim is one of roles. It must
// run after AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := ClaimsFromContext(r.Context())
			if _, permitted := allowed[c.Role]; !ok || !permitted {
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "forbidden",
					"error_description": "role not permitted",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RFC 6750 style error for bearer authentication.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_or_expired_token",
		"error_description": desc,
	})
}
