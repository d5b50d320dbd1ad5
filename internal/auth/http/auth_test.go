package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/aussiebroadwan/quill/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestLogin_Legacy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "legacy@quill.test", domain.RoleEditor)
	c := env.client()

	resp, err := c.Login(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword})
	require.NoError(t, err)
	require.False(t, resp.MFARequired)
	require.Empty(t, resp.MFAToken)
	require.Empty(t, resp.MFAMethods)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, 900, resp.ExpiresIn)
	require.Equal(t, u.ID, resp.User.ID)
	require.Equal(t, "editor", resp.User.Role)

	set := c.LastSetCookies()
	access := cookieNamed(set, "access_token")
	require.NotNil(t, access)
	require.Equal(t, resp.AccessToken, access.Value)
	require.Equal(t, "/api", access.Path)
	require.Equal(t, 900, access.MaxAge)
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	require.Equal(t, http.SameSiteStrictMode, access.SameSite)
	require.Nil(t, cookieNamed(set, "refresh_token"), "legacy login issues no refresh token")
}

func TestLogin_FailuresLookAlike(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "known@quill.test", domain.RoleViewer)
	c := env.client()

	_, wrongPassword := c.LoginV2(ctx, authsdk.LoginRequest{Email: u.Email, Password: "not the password"})
	_, unknownEmail := c.LoginV2(ctx, authsdk.LoginRequest{Email: "nobody@quill.test", Password: testPassword})

	requireAPIError(t, wrongPassword, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	requireAPIError(t, unknownEmail, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	require.Empty(t, c.LastSetCookies())

	_, err := env.users.SetActive(ctx, u.Email, false)
	require.NoError(t, err)
	_, inactive := c.LoginV2(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword})
	require.Equal(t, wrongPassword.Error(), inactive.Error())

	_, err = c.LoginV2(ctx, authsdk.LoginRequest{Email: u.Email})
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
}

func TestLoginV2_Cookies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "v2@quill.test", domain.RoleViewer)

	tests := []struct {
		name       string
		rememberMe bool
		maxAge     int
	}{
		{"session", false, 24 * 60 * 60},
		{"remember me", true, 7 * 24 * 60 * 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := env.client()
			resp, err := c.LoginV2(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword, RememberMe: tt.rememberMe})
			require.NoError(t, err)
			require.Empty(t, resp.AccessToken, "v2 keeps tokens out of the body")

			set := c.LastSetCookies()
			require.NotNil(t, cookieNamed(set, "access_token"))
			refresh := cookieNamed(set, "refresh_token")
			require.NotNil(t, refresh)
			require.Equal(t, "/api/auth", refresh.Path)
			require.Equal(t, tt.maxAge, refresh.MaxAge)
			require.True(t, refresh.HttpOnly)
			require.True(t, refresh.Secure)
			require.Equal(t, http.SameSiteStrictMode, refresh.SameSite)
		})
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.client()

	resp, err := c.Register(ctx, authsdk.RegisterRequest{Email: "New@Quill.Test", Password: testPassword, DisplayName: "New"})
	require.NoError(t, err)
	require.Equal(t, "new@quill.test", resp.User.Email)
	require.Equal(t, "viewer", resp.User.Role)
	require.NotEmpty(t, c.Cookie("access_token"))
	require.NotEmpty(t, c.Cookie("refresh_token"))

	_, err = env.client().Register(ctx, authsdk.RegisterRequest{Email: "new@quill.test", Password: testPassword})
	requireAPIError(t, err, http.StatusConflict, authsdk.ErrorCodeEmailUnavailable)

	_, err = env.client().Register(ctx, authsdk.RegisterRequest{Email: "short@quill.test", Password: "short"})
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	require.Contains(t, err.Error(), "at least 10 characters")
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "refresh@quill.test", domain.RoleViewer)
	c := env.signIn(t, u.Email)

	oldRefresh := c.Cookie("refresh_token")
	oldAccess := c.Cookie("access_token")

	_, err := c.Refresh(ctx)
	require.NoError(t, err)
	require.NotEqual(t, oldRefresh, c.Cookie("refresh_token"))
	require.NotEqual(t, oldAccess, c.Cookie("access_token"))

	who, err := c.Verify(ctx)
	require.NoError(t, err)
	require.True(t, who.Valid)

	t.Run("old token is rejected", func(t *testing.T) {
		replay := env.client()
		replay.SetCookie(&http.Cookie{Name: "refresh_token", Value: oldRefresh, Path: "/api/auth"})
		_, err := replay.Refresh(ctx)
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidOrExpiredToken)
		require.Empty(t, replay.LastSetCookies())
	})

	t.Run("missing cookie", func(t *testing.T) {
		anon := env.client()
		_, err := anon.Refresh(ctx)
		requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
		require.Empty(t, anon.LastSetCookies(), "no cookie is touched")
	})

	t.Run("blank cookie counts as missing", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, env.srv.URL+"/api/auth/refresh", nil)
		require.NoError(t, err)
		req.Header.Set("Cookie", `refresh_token="   "`)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Empty(t, resp.Cookies(), "no cookie is touched")
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "logout@quill.test", domain.RoleViewer)

	t.Run("without cookies", func(t *testing.T) {
		c := env.client()
		require.NoError(t, c.Logout(ctx))

		set := c.LastSetCookies()
		require.Len(t, set, 2)
		for _, name := range []string{"access_token", "refresh_token"} {
			ck := cookieNamed(set, name)
			require.NotNil(t, ck, name)
			require.Empty(t, ck.Value)
			require.Negative(t, ck.MaxAge, "Max-Age=0 parses as -1")
		}
	})

	t.Run("revokes the session", func(t *testing.T) {
		c := env.signIn(t, u.Email)
		access := c.Cookie("access_token")
		refresh := c.Cookie("refresh_token")

		require.NoError(t, c.Logout(ctx))
		require.Empty(t, c.Cookie("access_token"))
		require.Empty(t, c.Cookie("refresh_token"))

		stale := env.client()
		stale.SetBearerToken(access)
		who, err := stale.Verify(ctx)
		require.NoError(t, err)
		require.False(t, who.Valid, "the access token is denied after logout")

		stale.SetCookie(&http.Cookie{Name: "refresh_token", Value: refresh, Path: "/api/auth"})
		_, err = stale.Refresh(ctx)
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidOrExpiredToken)
	})

	t.Run("rate limited logout still clears cookies", func(t *testing.T) {
		c := env.signIn(t, u.Email)

		limited := false
		for range httpx.ModerateLimit.Burst + 1 {
			if err := env.client().Logout(ctx); err != nil {
				requireAPIError(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeTooManyRequests)
				limited = true
				break
			}
		}
		require.True(t, limited, "logout is rate limited")

		err := c.Logout(ctx)
		requireAPIError(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeTooManyRequests)
		require.Len(t, c.LastSetCookies(), 2)
		require.Empty(t, c.Cookie("access_token"))
		require.Empty(t, c.Cookie("refresh_token"))
	})
}

func TestVerify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "verify@quill.test", domain.RoleDev)

	who, err := env.client().Verify(ctx)
	require.NoError(t, err)
	require.False(t, who.Valid)
	require.Empty(t, who.Username)

	c := env.signIn(t, u.Email)
	who, err = c.Verify(ctx)
	require.NoError(t, err)
	require.True(t, who.Valid)
	require.Equal(t, u.Email, who.Username)
	require.Equal(t, []string{"dev"}, who.Roles)

	garbage := env.client()
	garbage.SetBearerToken("not.a.jwt")
	who, err = garbage.Verify(ctx)
	require.NoError(t, err)
	require.False(t, who.Valid)

	_, err = env.users.SetActive(ctx, u.Email, false)
	require.NoError(t, err)
	who, err = c.Verify(ctx)
	require.NoError(t, err)
	require.False(t, who.Valid, "deactivated users are not valid even with a live token")
}
