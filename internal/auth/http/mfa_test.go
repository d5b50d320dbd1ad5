package http

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

var emailCode = regexp.MustCompile(`\b(\d{6})\b`)

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

// nextCode returns the code of the following time step. A step is accepted
// once, so a login right after enrolment needs it.
func nextCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now().Add(30*time.Second))
	require.NoError(t, err)
	return code
}

// wrongCode returns a six digit code accepted in no window around now.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	var valid []string
	for _, at := range []time.Time{now.Add(-30 * time.Second), now, now.Add(30 * time.Second)} {
		c, err := totp.GenerateCode(secret, at)
		require.NoError(t, err)
		valid = append(valid, c)
	}
	n, err := strconv.Atoi(valid[1])
	require.NoError(t, err)
	for {
		n = (n + 1) % 1_000_000
		code := fmt.Sprintf("%06d", n)
		if !slices.Contains(valid, code) {
			return code
		}
	}
}

func enrolTOTP(t *testing.T, c *authsdk.Client) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := c.MFASetup(ctx, "totp")
	require.NoError(t, err)
	require.Equal(t, "totp", setup.Method)
	require.False(t, setup.Enabled)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.OTPAuthURL, "otpauth://totp/")

	_, err = c.MFAVerifySetup(ctx, wrongCode(t, setup.Secret))
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidCode)

	done, err := c.MFAVerifySetup(ctx, currentCode(t, setup.Secret))
	require.NoError(t, err)
	require.True(t, done.Enabled)
	require.Len(t, done.BackupCodes, 10)
	return setup.Secret, done.BackupCodes
}

func TestMFA_TOTPLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "totp@quill.test", domain.RoleEditor)

	secret, backup := enrolTOTP(t, env.signIn(t, u.Email))

	c := env.client()
	resp, err := c.LoginV2(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword, RememberMe: true})
	require.NoError(t, err)
	require.True(t, resp.MFARequired)
	require.NotEmpty(t, resp.MFAToken)
	require.ElementsMatch(t, []string{"totp", "recovery"}, resp.MFAMethods)
	require.Nil(t, resp.User)
	require.Empty(t, c.LastSetCookies(), "no session before the second factor")

	_, err = c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: wrongCode(t, secret)})
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidCode)
	require.Empty(t, c.LastSetCookies())

	code := nextCode(t, secret)
	done, err := c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: code, Method: "totp"})
	require.NoError(t, err)
	require.True(t, done.User.MFAEnabled)
	refresh := cookieNamed(c.LastSetCookies(), "refresh_token")
	require.NotNil(t, refresh)
	require.Equal(t, 7*24*60*60, refresh.MaxAge, "remember me survives the challenge")

	_, err = c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: currentCode(t, secret)})
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidOrExpiredToken)

	t.Run("a used code answers no other challenge", func(t *testing.T) {
		c := env.client()
		resp, err := c.LoginV2(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword})
		require.NoError(t, err)
		_, err = c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: code, Method: "totp"})
		requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidCode)
	})

	t.Run("backup code", func(t *testing.T) {
		c := env.client()
		resp, err := c.Login(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword})
		require.NoError(t, err)
		require.True(t, resp.MFARequired)

		done, err := c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: backup[0], Method: "recovery"})
		require.NoError(t, err)
		require.NotEmpty(t, done.AccessToken, "a legacy login finishes with the token in the body")
		require.Empty(t, c.Cookie("refresh_token"))

		status, err := c.MFAStatus(ctx)
		require.NoError(t, err)
		require.True(t, status.Enabled)
		require.Equal(t, "totp", status.Method)
		require.Equal(t, 9, status.BackupCodesRemaining)
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := env.client().MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: "x", Code: "123456", Method: "sms"})
		requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	})
}

func TestMFA_AttemptLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "limit@quill.test", domain.RoleViewer)
	secret, _ := enrolTOTP(t, env.signIn(t, u.Email))

	c := env.client()
	resp, err := c.LoginV2(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword})
	require.NoError(t, err)

	bad := wrongCode(t, secret)
	for range 5 {
		_, err := c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: bad})
		requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidCode)
	}

	_, err = c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: currentCode(t, secret)})
	require.Error(t, err, "the challenge is gone after five failures")
	require.Empty(t, c.LastSetCookies())
}

func TestMFA_EmailLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "mail@quill.test", domain.RoleViewer)

	owner := env.signIn(t, u.Email)
	setup, err := owner.MFASetup(ctx, "email")
	require.NoError(t, err)
	require.True(t, setup.Enabled)
	require.Empty(t, setup.Secret)

	_, err = owner.MFASetup(ctx, "totp")
	requireAPIError(t, err, http.StatusConflict, authsdk.ErrorCodeMFAAlreadyEnabled)

	c := env.client()
	resp, err := c.LoginV2(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword})
	require.NoError(t, err)
	require.True(t, resp.MFARequired)
	require.Equal(t, []string{"email"}, resp.MFAMethods)

	sent, err := c.SendEmailOTP(ctx, resp.MFAToken)
	require.NoError(t, err)
	require.True(t, sent.Sent)
	require.Positive(t, sent.ExpiresIn)
	code := env.mailer.match(t, emailCode)

	_, err = c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: code, Method: "totp"})
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)

	_, err = c.SendEmailOTP(ctx, resp.MFAToken)
	require.NoError(t, err)
	_, err = c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: code})
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidCode)

	code = env.mailer.match(t, emailCode)
	_, err = c.MFAVerify(ctx, authsdk.MFAVerifyRequest{MFAToken: resp.MFAToken, Code: code, Method: "email"})
	require.NoError(t, err)
	require.NotEmpty(t, c.Cookie("refresh_token"))
}

func TestMFA_Disable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "off@quill.test", domain.RoleViewer)
	c := env.signIn(t, u.Email)

	require.Error(t, c.MFADisable(ctx, testPassword), "nothing to disable yet")

	enrolTOTP(t, c)

	err := c.MFADisable(ctx, "wrong password")
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)

	require.NoError(t, c.MFADisable(ctx, testPassword))
	status, err := c.MFAStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.Enabled)
	require.Zero(t, status.BackupCodesRemaining)

	resp, err := env.client().LoginV2(ctx, authsdk.LoginRequest{Email: u.Email, Password: testPassword})
	require.NoError(t, err)
	require.False(t, resp.MFARequired)
}

func TestMFA_RequiresAuthentication(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.client().MFASetup(ctx, "totp")
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidOrExpiredToken)

	_, err = env.client().MFAStatus(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidOrExpiredToken)
}
