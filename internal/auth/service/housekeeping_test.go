package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHousekeeping_Cleanup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "old@quill.test", domain.RoleViewer)
	enableTOTP(t, f, u)
	u, _ = f.store.Users().GetUserByID(ctx, u.ID)

	_, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
	require.NoError(t, err)
	_, err = f.mfa.IssueChallenge(ctx, u, ChallengeOptions{})
	require.NoError(t, err)
	f.resets.RequestReset(ctx, u.Email)
	f.resets.Wait()
	require.NoError(t, f.store.Denylist().DenyAccessToken(ctx, "jti-1", u.ID, f.clock.Now().Add(time.Minute)))

	hk := NewHousekeepingService(f.store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.Now = f.clock.Now

	require.Zero(t, hk.Cleanup(ctx), "nothing has expired yet")

	f.clock.Advance(8 * 24 * time.Hour)
	require.EqualValues(t, 4, hk.Cleanup(ctx))

	denied, err := f.store.Denylist().IsAccessTokenDenied(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, denied)
}

func TestHousekeeping_StartStop(t *testing.T) {
	f := newFixture(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hk := NewHousekeepingService(f.store, f.store.Denylist(), slog.New(slog.NewTextHandler(io.Discard, nil)), 10*time.Millisecond)

	hk.Start()
	time.Sleep(30 * time.Millisecond)
	hk.Stop()
}

func TestNewHousekeepingService_DefaultInterval(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	hk := NewHousekeepingService(f.store, nil, slog.Default(), 0)
	require.Equal(t, time.Hour, hk.Interval)
}
