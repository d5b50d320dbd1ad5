package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

var resetLink = regexp.MustCompile(`https://quill\.test/reset-password\?token=(\S+)`)

func mailedResetToken(t *testing.T, f *fixture) string {
	t.Helper()
	m := resetLink.FindStringSubmatch(f.mailer.last(t).Body)
	require.Len(t, m, 2, "reset link in mail")
	token, err := url.QueryUnescape(m[1])
	require.NoError(t, err)
	return token
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown and inactive accounts get no mail", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "off@quill.test", domain.RoleViewer)
		require.NoError(t, f.store.Users().SetActive(ctx, u.ID, false, f.clock.Now()))

		f.resets.RequestReset(ctx, "nobody@quill.test")
		f.resets.RequestReset(ctx, "off@quill.test")
		f.resets.Wait()
		require.Zero(t, f.mailer.count())
	})

	t.Run("mail failures are swallowed", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, "mailfail@quill.test", domain.RoleViewer)
		f.mailer.err = errors.New("smtp down")

		f.resets.RequestReset(ctx, "mailfail@quill.test")
		f.resets.Wait()
		require.Zero(t, f.mailer.count())
	})

	t.Run("reset signs out everywhere", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "forgot@quill.test", domain.RoleViewer)

		pair, err := f.tokens.IssuePair(ctx, u, IssueOptions{WithRefresh: true})
		require.NoError(t, err)

		f.resets.RequestReset(ctx, " Forgot@quill.test")
		f.resets.Wait()
		require.Equal(t, "forgot@quill.test", f.mailer.last(t).To)
		token := mailedResetToken(t, f)

		require.ErrorIs(t, f.resets.Reset(ctx, token, "short"), ErrWeakPassword)
		require.NoError(t, f.resets.Reset(ctx, token, "a brand new passphrase"))
		require.ErrorIs(t, f.resets.Reset(ctx, token, "another new passphrase"), ErrInvalidOrExpiredToken)

		_, err = f.auth.Credentials.Verify(ctx, u.Email, testPassword)
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.auth.Credentials.Verify(ctx, u.Email, "a brand new passphrase")
		require.NoError(t, err)

		_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken, SessionMeta{})
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("a new request replaces the old link", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, "twice@quill.test", domain.RoleViewer)

		f.resets.RequestReset(ctx, "twice@quill.test")
		f.resets.Wait()
		old := mailedResetToken(t, f)
		f.resets.RequestReset(ctx, "twice@quill.test")
		f.resets.Wait()
		current := mailedResetToken(t, f)

		require.ErrorIs(t, f.resets.Reset(ctx, old, "a brand new passphrase"), ErrInvalidOrExpiredToken)
		require.NoError(t, f.resets.Reset(ctx, current, "a brand new passphrase"))
	})

	t.Run("links expire", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, "late@quill.test", domain.RoleViewer)

		f.resets.RequestReset(ctx, "late@quill.test")
		f.resets.Wait()
		token := mailedResetToken(t, f)

		f.clock.Advance(DefaultPasswordResetTTL + time.Minute)
		require.ErrorIs(t, f.resets.Reset(ctx, token, "a brand new passphrase"), ErrInvalidOrExpiredToken)
		require.ErrorIs(t, f.resets.Reset(ctx, "", "a brand new passphrase"), ErrInvalidOrExpiredToken)
	})
}

// slowMailer takes delay to deliver each message.
type slowMailer struct {
	delay time.Duration

	mu   sync.Mutex
	sent []Message
}

func (m *slowMailer) Send(_ context.Context, msg Message) error {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func TestPasswordReset_RequestTimeHidesAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.createUser(t, "known@quill.test", domain.RoleViewer)

	mailer := &slowMailer{delay: 300 * time.Millisecond}
	f.resets.Mailer = mailer

	// Cancelled with the request, as when the client hangs up after the 202.
	ctx, cancel := context.WithCancel(context.Background())
	for _, email := range []string{"known@quill.test", "unknown@quill.test"} {
		start := time.Now()
		f.resets.RequestReset(ctx, email)
		require.Less(t, time.Since(start), mailer.delay/3, email)
	}
	cancel()

	f.resets.Wait()
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "known@quill.test", mailer.sent[0].To)
}
