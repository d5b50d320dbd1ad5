package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

var testArgon2 = cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	store    *sqlite.Store
	clock    *testClock
	mailer   *recordingMailer
	hasher   *cryptox.PasswordHasher
	keys     *jwtx.KeyManager
	auth     *AuthService
	tokens   *TokenIssuer
	mfa      *MFAService
	users    *UserService
	resets   *PasswordResetService
	sessions *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureDSN(t, sqlite.DSN(":memory:"))
}

func newFixtureDSN(t *testing.T, dsn string) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "https://quill.test", Audience: "quill"})
	require.NoError(t, err)

	clk := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	mailer := &recordingMailer{}
	hasher := cryptox.NewPasswordHasher("test-pepper").WithParams(testArgon2)

	tokens := &TokenIssuer{
		KeyManager: keys,
		Store:      st,
		Issuer:     "https://quill.test",
		Audience:   "quill",
		Now:        clk.Now,
	}
	mfa := &MFAService{Store: st, Hasher: hasher, Mailer: mailer, Issuer: "Quill", Now: clk.Now}
	users := &UserService{Store: st, Hasher: hasher, Now: clk.Now}

	return &fixture{
		store:  st,
		clock:  clk,
		mailer: mailer,
		hasher: hasher,
		keys:   keys,
		tokens: tokens,
		mfa:    mfa,
		users:  users,
		auth: &AuthService{
			Store:       st,
			Credentials: &CredentialVerifier{Store: st, Hasher: hasher},
			Tokens:      tokens,
			MFA:         mfa,
			Users:       users,
		},
		resets: &PasswordResetService{
			Store:   st,
			Hasher:  hasher,
			Mailer:  mailer,
			BaseURL: "https://quill.test/",
			Now:     clk.Now,
		},
		sessions: &SessionService{Store: st, Now: clk.Now},
	}
}

func (f *fixture) createUser(t *testing.T, email string, role domain.Role) domain.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), CreateUserInput{Email: email, Password: testPassword, Role: role})
	require.NoError(t, err)
	return u
}

func principal(u domain.User) domain.Principal {
	return domain.Principal{ID: u.ID, Role: u.Role, Email: u.Email}
}
