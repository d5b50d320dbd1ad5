package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_IssuePair(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice@quill.test", domain.RoleEditor)
	now := f.clock.Now()

	t.Run("access only", func(t *testing.T) {
		pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{})
		require.NoError(t, err)
		require.Empty(t, pair.RefreshToken)
		require.NotEmpty(t, pair.SessionID)
		require.Equal(t, now.Add(jwtx.DefaultAccessTokenTTL), pair.AccessExpiresAt)

		claims, err := f.keys.Verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, u.ID, claims.Subject)
		require.Equal(t, "editor", claims.Role)
		require.Equal(t, "alice@quill.test", claims.Email)
		require.Equal(t, pair.SessionID, claims.SID)
		require.Equal(t, []string{jwtx.AMRPassword}, claims.AMR)
		require.NotEmpty(t, claims.ID)
	})

	t.Run("refresh lifetimes", func(t *testing.T) {
		short, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
		require.NoError(t, err)
		require.NotEmpty(t, short.RefreshToken)
		require.Equal(t, now.Add(24*time.Hour), short.RefreshExpiresAt)

		long, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true, RememberMe: true})
		require.NoError(t, err)
		require.Equal(t, now.Add(7*24*time.Hour), long.RefreshExpiresAt)

		stored, err := f.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(long.RefreshToken))
		require.NoError(t, err)
		require.True(t, stored.RememberMe)
		require.Equal(t, long.SessionID, stored.SessionID)
		require.False(t, stored.Revoked)
	})

	t.Run("session id carried over", func(t *testing.T) {
		pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{SessionID: "sess-1", AMR: []string{jwtx.AMRPassword, jwtx.AMRMFA}})
		require.NoError(t, err)
		claims, err := f.keys.Verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "sess-1", claims.SID)
		require.True(t, claims.HasAMR(jwtx.AMRMFA))
	})
}

func TestTokenIssuer_Rotate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rotates once", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "bob@quill.test", domain.RoleViewer)

		first, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true, RememberMe: true})
		require.NoError(t, err)

		second, got, err := f.tokens.Rotate(ctx, first.RefreshToken, SessionMeta{UserAgent: "test"})
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, first.SessionID, second.SessionID)
		require.True(t, second.RememberMe)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)

		_, _, err = f.tokens.Rotate(ctx, first.RefreshToken, SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

		_, _, err = f.tokens.Rotate(ctx, second.RefreshToken, SessionMeta{})
		require.NoError(t, err)
	})

	t.Run("unknown and blank", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.tokens.Rotate(ctx, "", SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
		_, _, err = f.tokens.Rotate(ctx, "nope", SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("expired is revoked", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "carol@quill.test", domain.RoleViewer)
		pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
		require.NoError(t, err)

		f.clock.Advance(25 * time.Hour)
		_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken, SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

		stored, err := f.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(pair.RefreshToken))
		require.NoError(t, err)
		require.True(t, stored.Revoked)
	})

	t.Run("inactive account", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "dave@quill.test", domain.RoleViewer)
		pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
		require.NoError(t, err)

		require.NoError(t, f.store.Users().SetActive(ctx, u.ID, false, f.clock.Now()))

		_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken, SessionMeta{})
		require.ErrorIs(t, err, ErrAccountInactive)

		// The token was revoked on the way out.
		_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken, SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("storage failure reads as invalid token", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "erin@quill.test", domain.RoleViewer)
		pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
		require.NoError(t, err)

		require.NoError(t, f.store.Close())
		_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken, SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})
}

func TestTokenIssuer_ConcurrentRotate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixtureDSN(t, sqlite.DSN(filepath.Join(t.TempDir(), "auth.db")))
	u := f.createUser(t, "race@quill.test", domain.RoleViewer)
	pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
	require.NoError(t, err)

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.tokens.Rotate(ctx, pair.RefreshToken, SessionMeta{})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidOrExpiredToken):
				losses++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, losses)

	live, err := f.store.RefreshTokens().ListActiveRefreshTokens(ctx, u.ID, f.clock.Now())
	require.NoError(t, err)
	require.Len(t, live, 1, "exactly one live token per session")
}

func TestTokenIssuer_RevokeAndDeny(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "frank@quill.test", domain.RoleViewer)

	pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
	require.NoError(t, err)

	t.Run("revoke", func(t *testing.T) {
		require.NoError(t, f.tokens.Revoke(ctx, pair.RefreshToken))
		require.NoError(t, f.tokens.Revoke(ctx, pair.RefreshToken))
		require.NoError(t, f.tokens.Revoke(ctx, ""))

		_, _, err := f.tokens.Rotate(ctx, pair.RefreshToken, SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("deny access", func(t *testing.T) {
		require.NoError(t, f.tokens.DenyAccess(ctx, pair.AccessToken))

		claims, err := f.keys.Verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		denied, err := f.store.Denylist().IsAccessTokenDenied(ctx, claims.ID)
		require.NoError(t, err)
		require.True(t, denied)

		require.ErrorIs(t, f.tokens.DenyAccess(ctx, "not.a.jwt"), ErrInvalidOrExpiredToken)
	})
}
