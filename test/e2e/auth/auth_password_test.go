//go:build e2e

package auth_test

import (
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/quill/pkg/authsdk"
)

var loggedResetLink = regexp.MustCompile(`https://cms\.quill\.test/reset-password\?token=([^\s"\\]+)`)

// TestPasswordReset requests a link, resets with it and checks that old
// sessions are signed out.
func TestPasswordReset(t *testing.T) {
	c := setupAuthContainer(t, nil)
	c.createUser(t, "forgot@quill.test", "viewer")
	ctx := t.Context()

	old := c.signIn(t, "forgot@quill.test")
	client := c.client()

	require.NoError(t, client.ForgotPassword(ctx, "nobody@quill.test"), "unknown addresses are accepted too")
	require.NoError(t, client.ForgotPassword(ctx, "forgot@quill.test"))

	raw := c.lastLogMatch(t, loggedResetLink)
	token, err := url.QueryUnescape(raw)
	require.NoError(t, err)

	const fresh = "an entirely new passphrase"
	require.NoError(t, client.ResetPassword(ctx, token, fresh))

	err = client.ResetPassword(ctx, token, fresh)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidOrExpiredToken)

	_, err = old.Refresh(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidOrExpiredToken)

	_, err = client.LoginV2(ctx, authsdk.LoginRequest{Email: "forgot@quill.test", Password: fresh})
	require.NoError(t, err)
}
