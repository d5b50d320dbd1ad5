package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig_Layers(t *testing.T) {
	t.Setenv("AUTH_ISSUER", "https://env.quill.test")
	t.Setenv("AUTH_DATABASE_FILE", "/var/lib/quill/auth.db")
	t.Setenv("PORT", "9000")
	t.Setenv("AUTH_REFRESH_TTL", "12h")

	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9100\naccess_ttl: 10m\nlog_level: debug\n"), 0o600))

	fs := pflag.NewFlagSet("auth", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level=warn"}))

	cfg, err := LoadConfig(path, fs)
	require.NoError(t, err)

	require.Equal(t, "https://env.quill.test", cfg.Issuer, "environment")
	require.Equal(t, 12*time.Hour, cfg.RefreshTTL, "environment")
	require.Equal(t, 9100, cfg.Port, "file beats environment")
	require.Equal(t, 10*time.Minute, cfg.AccessTTL, "file")
	require.Equal(t, "warn", cfg.LogLevel, "set flag beats file")
	require.Equal(t, "/var/lib/quill/auth.db", cfg.DatabaseFile, "unset flags do not override")
	require.Equal(t, 7*24*time.Hour, cfg.RememberMeTTL, "built in default")
	require.Equal(t, KeyModeEphemeral, cfg.KeyMode)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	base, err := LoadConfig("", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"no issuer", func(c *Config) { c.Issuer = "" }, false},
		{"bad key mode", func(c *Config) { c.KeyMode = "vault" }, false},
		{"file mode without path", func(c *Config) { c.KeyMode = KeyModeFile; c.SigningKeyFile = "" }, false},
		{"redis without address", func(c *Config) { c.DenylistBackend = DenylistRedis; c.RedisAddr = "" }, false},
		{"unknown denylist", func(c *Config) { c.DenylistBackend = "memcached" }, false},
		{"port out of range", func(c *Config) { c.Port = 70000 }, false},
		{"remember me shorter than refresh", func(c *Config) { c.RememberMeTTL = time.Hour }, false},
		{"relative base url", func(c *Config) { c.AppBaseURL = "/cms" }, false},
		{"smtp without sender", func(c *Config) { c.SMTPHost = "mail"; c.SMTPFrom = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func testConfig(t *testing.T, dir string) Config {
	t.Helper()
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	cfg.DatabaseFile = filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.KeyMode = KeyModeFile
	cfg.SigningKeyFile = filepath.Join(dir, "keys", "signing.pem")
	cfg.BootstrapAdminEmail = "root@quill.test"
	return cfg
}

func TestNew_WiresService(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	app, err := New(ctx, cfg, discardLogger())
	require.NoError(t, err)
	kid := app.keyManager.KeySet.PublicJWKS().Keys[0].Kid

	admin, err := app.userService.GetByEmail(ctx, "root@quill.test")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, admin.Role)

	srv := httptest.NewServer(app.Handler())
	for _, path := range []string{"/livez", "/readyz", "/.well-known/jwks.json", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	srv.Close()
	require.NoError(t, app.Close())

	t.Run("restart keeps keys and skips bootstrap", func(t *testing.T) {
		again, err := New(ctx, cfg, discardLogger())
		require.NoError(t, err)
		defer func() { _ = again.Close() }()
		require.Equal(t, kid, again.keyManager.KeySet.PublicJWKS().Keys[0].Kid)
	})
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.DenylistBackend = DenylistRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, discardLogger())
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Port = 0
	cfg.ShutdownGracePeriod = time.Second

	app, err := New(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
