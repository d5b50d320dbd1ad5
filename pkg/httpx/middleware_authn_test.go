package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/quill/pkg/httpx"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type fakeDenylist struct {
	denied map[string]bool
	err    error
}

func (f fakeDenylist) IsAccessTokenDenied(_ context.Context, jti string) (bool, error) {
	return f.denied[jti], f.err
}

func issue(t *testing.T, km *jwtx.KeyManager, role string) (string, jwtx.Claims) {
	t.Helper()
	c := jwtx.NewAccessClaims(jwtx.Subject{ID: "user-1", Role: role}, "sess-1", []string{jwtx.AMRPassword},
		"iss", []string{"aud"}, time.Minute, time.Now())
	token, err := km.Signer().Sign(c)
	require.NoError(t, err)
	return token, c
}

func TestAuthnMiddleware(t *testing.T) {
	t.Parallel()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "iss", Audience: "aud", NumKeys: 1})
	require.NoError(t, err)
	token, claims := issue(t, km, "editor")

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "user-1", httpx.UserIDFromContext(r.Context()))
		require.Equal(t, claims.ID, c.ID)
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		deny   httpx.Denylist
		setup  func(r *http.Request)
		status int
	}{
		{"bearer header", nil, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent},
		{"cookie", nil, func(r *http.Request) { r.AddCookie(&http.Cookie{Name: httpx.AccessTokenCookie, Value: token}) }, http.StatusNoContent},
		{"missing", nil, func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage", nil, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"wrong scheme", nil, func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) }, http.StatusUnauthorized},
		{"denied", fakeDenylist{denied: map[string]bool{claims.ID: true}},
			func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusUnauthorized},
		{"denylist down", fakeDenylist{err: errors.New("boom")},
			func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := httpx.AuthnMiddleware(km.Verifier, tt.deny)(echo)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
			}
		})
	}
}

func TestOptionalAuthn(t *testing.T) {
	t.Parallel()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "iss", NumKeys: 1})
	require.NoError(t, err)
	token, _ := issue(t, km, "viewer")

	var authed bool
	h := httpx.OptionalAuthn(km.Verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authed = httpx.ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, authed)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, authed)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "iss", NumKeys: 1})
	require.NoError(t, err)

	h := httpx.Chain(okHandler, httpx.AuthnMiddleware(km.Verifier, nil), httpx.RequireRole("admin", "editor"))

	for role, want := range map[string]int{
		"admin":  http.StatusOK,
		"editor": http.StatusOK,
		"viewer": http.StatusForbidden,
	} {
		token, _ := issue(t, km, role)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, role)
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	httpx.Chain(okHandler, mw("a"), mw("b"), mw("c")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}
