package service

import (
	"context"
	"strings"
	"testing"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ValidatePassword("123456789"), ErrWeakPassword)
	require.NoError(t, ValidatePassword("1234567890"))
	require.NoError(t, ValidatePassword("ünïcödé pw"))
	require.ErrorIs(t, ValidatePassword(strings.Repeat("a", 129)), ErrWeakPassword)
	require.Equal(t, "password must be at least 10 characters", Reason(ValidatePassword("x")))
}

func TestUserService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.users.Create(ctx, CreateUserInput{Email: " Writer@Quill.Test", Password: testPassword, Role: domain.RoleEditor})
	require.NoError(t, err)
	require.Equal(t, "writer@quill.test", u.Email)
	require.Equal(t, "writer", u.DisplayName)
	require.True(t, u.Active)

	_, err = f.users.Create(ctx, CreateUserInput{Email: "x@quill.test", Password: testPassword, Role: "owner"})
	require.ErrorIs(t, err, ErrInvalidRequest)

	t.Run("get", func(t *testing.T) {
		got, err := f.users.GetByEmail(ctx, "WRITER@quill.test")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)

		_, err = f.users.GetByEmail(ctx, "missing@quill.test")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set role", func(t *testing.T) {
		got, err := f.users.SetRole(ctx, u.Email, domain.RoleDev)
		require.NoError(t, err)
		require.Equal(t, domain.RoleDev, got.Role)

		stored, err := f.store.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleDev, stored.Role)
	})

	t.Run("deactivation revokes sessions", func(t *testing.T) {
		pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
		require.NoError(t, err)

		got, err := f.users.SetActive(ctx, u.Email, false)
		require.NoError(t, err)
		require.False(t, got.Active)

		_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken, SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

		got, err = f.users.SetActive(ctx, u.Email, true)
		require.NoError(t, err)
		require.True(t, got.Active)
	})
}

func TestUserService_Bootstrap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	admin, password, err := f.users.Bootstrap(ctx, "root@quill.test")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, admin.Role)
	require.Len(t, password, 16)

	_, err = f.auth.Credentials.Verify(ctx, "root@quill.test", password)
	require.NoError(t, err)

	_, _, err = f.users.Bootstrap(ctx, "other@quill.test")
	require.ErrorIs(t, err, ErrBootstrapAlready)
}
