package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestCredentialVerifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "cred@quill.test", domain.RoleViewer)
	v := f.auth.Credentials

	got, err := v.Verify(ctx, "  CRED@quill.test", testPassword)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = v.Verify(ctx, u.Email, testPassword+"!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = v.Verify(ctx, "ghost@quill.test", testPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.store.Users().SetActive(ctx, u.ID, false, f.clock.Now()))
	_, err = v.Verify(ctx, u.Email, testPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
