package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

type recordingMailer struct {
	mu   sync.Mutex
	sent []service.Message
}

func (m *recordingMailer) Send(_ context.Context, msg service.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// match returns the first submatch of re in the latest mail.
func (m *recordingMailer) match(t *testing.T, re *regexp.Regexp) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	got := re.FindStringSubmatch(m.sent[len(m.sent)-1].Body)
	require.Len(t, got, 2, "mail body did not match %s", re)
	return got[1]
}

type testEnv struct {
	srv    *httptest.Server
	store  *sqlite.Store
	users  *service.UserService
	resets *service.PasswordResetService
	mailer *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(":memory:"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "https://quill.test", Audience: "quill"})
	require.NoError(t, err)

	hasher := cryptox.NewPasswordHasher("test-pepper").WithParams(cryptox.Argon2Params{
		Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16,
	})
	mailer := &recordingMailer{}
	reg := prometheus.NewRegistry()
	metrics := service.NewMetrics(reg)

	tokens := &service.TokenIssuer{
		KeyManager: keys,
		Store:      st,
		Issuer:     "https://quill.test",
		Audience:   "quill",
		Metrics:    metrics,
	}
	mfa := &service.MFAService{Store: st, Hasher: hasher, Mailer: mailer, Issuer: "Quill", Metrics: metrics}
	users := &service.UserService{Store: st, Hasher: hasher}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(keys, "test", st, nil, reg, logger)
	router.AuthService = &service.AuthService{
		Store:       st,
		Credentials: &service.CredentialVerifier{Store: st, Hasher: hasher},
		Tokens:      tokens,
		MFA:         mfa,
		Users:       users,
		Metrics:     metrics,
	}
	router.MFAService = mfa
	resets := &service.PasswordResetService{
		Store:   st,
		Hasher:  hasher,
		Mailer:  mailer,
		BaseURL: "https://quill.test",
	}
	router.PasswordResetService = resets
	router.SessionService = &service.SessionService{Store: st}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: st, users: users, resets: resets, mailer: mailer}
}

func (e *testEnv) client() *authsdk.Client {
	return authsdk.NewClient(e.srv.URL)
}

func (e *testEnv) createUser(t *testing.T, email string, role domain.Role) domain.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), service.CreateUserInput{Email: email, Password: testPassword, Role: role})
	require.NoError(t, err)
	return u
}

// signIn logs a fresh client in with both cookies.
func (e *testEnv) signIn(t *testing.T, email string) *authsdk.Client {
	t.Helper()
	c := e.client()
	resp, err := c.LoginV2(context.Background(), authsdk.LoginRequest{Email: email, Password: testPassword})
	require.NoError(t, err)
	require.False(t, resp.MFARequired)
	return c
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
}
