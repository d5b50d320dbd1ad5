package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	httpapi "github.com/aussiebroadwan/quill/internal/auth/http"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/httpx"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/aussiebroadwan/quill/pkg/slogx"
)

// BuildVersion is set at build time with -ldflags "-X .../app.BuildVersion=...".
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         *sqlite.Store
	denylist   store.Denylist
	keyManager *jwtx.KeyManager
	registry   *prometheus.Registry

	// Services
	authService         *service.AuthService
	userService         *service.UserService
	mfaService          *service.MFAService
	resetService        *service.PasswordResetService
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the service logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "quill-auth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}
	httpx.TrustProxyHeaders = cfg.TrustProxyHeaders

	db, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	if err := app.initDenylist(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	keyManager, err := InitAuthKeys(cfg, logger)
	if err != nil {
		_ = app.closeStores()
		return nil, err
	}
	app.keyManager = keyManager

	if err := app.initServices(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	app.initHTTP()

	if err := app.bootstrap(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}

	return app, nil
}

// Handler is the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (app *Application) Run(ctx context.Context) error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.closeStores()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("SERVER_FAILED").Wrapf(err, "server failed")
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
		if err := app.Shutdown(); err != nil {
			return oops.Code("SHUTDOWN_FAILED").Wrapf(err, "graceful shutdown failed")
		}
		return nil
	}
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		app.logger.Error("error closing stores", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Close releases the stores of an application that was never run.
func (app *Application) Close() error { return app.closeStores() }

func (app *Application) closeStores() error {
	if app.resetService != nil {
		app.resetService.Wait()
	}

	var errs []error
	if rd, ok := app.denylist.(*redis.Denylist); ok {
		errs = append(errs, rd.Close())
	}
	errs = append(errs, app.db.Close())
	return errors.Join(errs...)
}

// OpenStore opens the SQLite database, retrying while the file system comes
// up, and applies pending migrations.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (*sqlite.Store, error) {
	var db *sqlite.Store
	backoff := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		db, err = sqlite.NewStore(sqlite.DSN(cfg.DatabaseFile))
		if err != nil {
			logger.Warn("database not ready, retrying", "path", cfg.DatabaseFile, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("path", cfg.DatabaseFile).Wrapf(err, "open database")
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, oops.Code("MIGRATION_FAILED").Wrapf(err, "apply database migrations")
	}

	logger.Info("database migrations applied successfully", "path", cfg.DatabaseFile)
	return db, nil
}

// NewHasher loads (or creates) the pepper and returns the password hasher.
func NewHasher(cfg Config) (*cryptox.PasswordHasher, error) {
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, oops.Code("PEPPER_INIT_FAILED").With("path", cfg.PepperFile).Wrap(err)
	}
	return cryptox.NewPasswordHasher(pepper), nil
}

func (app *Application) initDenylist(ctx context.Context) error {
	if app.cfg.DenylistBackend != DenylistRedis {
		app.denylist = app.db.Denylist()
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rd, err := redis.New(pingCtx, redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	if err != nil {
		return oops.Code("DENYLIST_CONNECT_FAILED").With("addr", app.cfg.RedisAddr).Wrapf(err, "connect to redis")
	}
	app.denylist = rd
	app.logger.Info("access token denylist in redis", "addr", app.cfg.RedisAddr)
	return nil
}

func (app *Application) mailer() service.Mailer {
	if app.cfg.SMTPHost == "" {
		app.logger.Warn("no SMTP host configured, mail is written to the log")
		return service.LogMailer{}
	}
	return &service.SMTPMailer{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	hasher, err := NewHasher(app.cfg)
	if err != nil {
		return err
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(app.registry)
	mailer := app.mailer()

	tokens := &service.TokenIssuer{
		KeyManager:    app.keyManager,
		Store:         app.db,
		Denylist:      app.denylist,
		Issuer:        app.cfg.Issuer,
		Audience:      app.cfg.Audience,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
		RememberMeTTL: app.cfg.RememberMeTTL,
		Metrics:       metrics,
	}

	app.userService = &service.UserService{Store: app.db, Hasher: hasher}
	app.mfaService = &service.MFAService{
		Store:        app.db,
		Hasher:       hasher,
		Mailer:       mailer,
		Issuer:       app.cfg.MFAIssuer,
		ChallengeTTL: app.cfg.MFAChallengeTTL,
		EmailOTPTTL:  app.cfg.EmailOTPTTL,
		Metrics:      metrics,
	}
	app.authService = &service.AuthService{
		Store:       app.db,
		Credentials: &service.CredentialVerifier{Store: app.db, Hasher: hasher},
		Tokens:      tokens,
		MFA:         app.mfaService,
		Users:       app.userService,
		Metrics:     metrics,
	}
	if app.cfg.RecaptchaSecret != "" {
		app.authService.Captcha = &service.Recaptcha{
			Secret:   app.cfg.RecaptchaSecret,
			MinScore: app.cfg.RecaptchaMinScore,
			Client:   &http.Client{Timeout: 5 * time.Second},
		}
		app.logger.Info("captcha checks enabled", "min_score", app.cfg.RecaptchaMinScore)
	}

	app.resetService = &service.PasswordResetService{
		Store:   app.db,
		Hasher:  hasher,
		Mailer:  mailer,
		BaseURL: app.cfg.AppBaseURL,
		TTL:     app.cfg.ResetTTL,
	}
	app.sessionService = &service.SessionService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.denylist,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager,
		BuildVersion,
		app.db,
		app.denylist,
		app.registry,
		app.logger,
	)

	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.PasswordResetService = app.resetService
	router.SessionService = app.sessionService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// bootstrap creates the first admin when an address is configured and the
// database is empty. The generated password is logged once.
func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapAdminEmail == "" {
		return nil
	}

	u, password, err := app.userService.Bootstrap(slogx.WithContext(ctx, app.logger), app.cfg.BootstrapAdminEmail)
	if errors.Is(err, service.ErrBootstrapAlready) {
		app.logger.Debug("bootstrap skipped, users already exist")
		return nil
	}
	if err != nil {
		return oops.Code("BOOTSTRAP_FAILED").With("email", app.cfg.BootstrapAdminEmail).Wrap(err)
	}

	app.logger.Warn("bootstrap admin created, change this password after signing in",
		"email", u.Email,
		"password", password,
	)
	return nil
}
