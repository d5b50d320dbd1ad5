package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/httpx"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/quill/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	keys         *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	registry     *prometheus.Registry
	metrics      *httpx.HTTPMetrics

	store    store.Store
	denylist store.Denylist

	AuthService          *service.AuthService
	MFAService           *service.MFAService
	PasswordResetService *service.PasswordResetService
	SessionService       *service.SessionService
	Cookies              *CookieBinder
}

// NewRouter creates a router. denylist defaults to the store's own; reg may
// be nil, in which case /metrics is not served.
func NewRouter(
	keys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	denylist store.Denylist,
	reg *prometheus.Registry,
	logger *slog.Logger,
) *Router {
	if denylist == nil {
		denylist = st.Denylist()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		denylist:     denylist,
		registry:     reg,
		logger:       logger,
	}
	if reg != nil {
		r.metrics = httpx.NewHTTPMetrics(reg)
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ApplyRoutes registers every route. Service fields must be set first.
func (r *Router) ApplyRoutes() {
	if r.Cookies == nil {
		r.Cookies = NewCookieBinder(r.AuthService.Tokens)
	}

	r.registerAuth()
	r.registerMFA()
	r.registerPassword()
	r.registerSessions()
	r.registerSystem()

	r.Mux.Handle("GET /swagger/", httpSwagger.Handler())

	var h http.Handler = r.Mux
	if r.metrics != nil {
		h = r.metrics.Middleware()(h)
	}
	r.handler = httpx.Chain(h, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Quill Authentication Service API
//	@version		0.1.0
//	@description	Sign in, session and MFA endpoints of the quill CMS.
//	@description
//	@description				Browsers receive tokens as HttpOnly cookies: access_token (path /api) and refresh_token (path /api/auth).
//	@description				Access tokens are JWTs that can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/quill
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}". The access_token cookie is accepted as well.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.handler == nil {
		httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
		return
	}
	r.handler.ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.keys.Verifier, r.denylist)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.AuthService, Cookies: r.Cookies}

	// Both login versions share one bucket per IP + email to slow down
	// credential stuffing
	loginLimit := httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email")

	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), loginLimit),
	)
	r.Mux.Handle("POST /api/auth/login/v2",
		httpx.Chain(http.HandlerFunc(h.HandleLoginV2), loginLimit),
	)

	// POST /register - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Logout clears cookies even when it is rate limited
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIPOnExceeded(httpx.ModerateLimit, func(w http.ResponseWriter, _ *http.Request) {
				h.Cookies.Clear(w)
			}),
		),
	)

	// Verify answers valid=false instead of 401, so authentication is optional
	r.Mux.Handle("GET /api/auth/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.OptionalAuthn(r.keys.Verifier, r.denylist),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFA: r.MFAService, Auth: r.AuthService, Cookies: r.Cookies}

	// POST /mfa/setup - moderate rate limit by user
	r.Mux.Handle("POST /api/auth/mfa/setup",
		httpx.Chain(http.HandlerFunc(h.HandleSetup),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// POST /mfa/verify-setup - strict rate limit by user (prevent brute force of TOTP codes)
	r.Mux.Handle("POST /api/auth/mfa/verify-setup",
		httpx.Chain(http.HandlerFunc(h.HandleVerifySetup),
			r.authn(),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	// Challenge endpoints are unauthenticated; bucket by IP + challenge
	r.Mux.Handle("POST /api/auth/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "mfa_token"),
		),
	)
	r.Mux.Handle("POST /api/auth/mfa/send-email-otp",
		httpx.Chain(http.HandlerFunc(h.HandleSendEmailOTP),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "mfa_token"),
		),
	)

	// DELETE /mfa/disable - strict, it checks a password
	r.Mux.Handle("DELETE /api/auth/mfa/disable",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			r.authn(),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /api/auth/mfa/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{Resets: r.PasswordResetService}

	r.Mux.Handle("POST /api/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /api/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{Sessions: r.SessionService}

	r.Mux.Handle("GET /api/auth/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /api/auth/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// Viewers are turned away before the service applies ScopeFor
	r.Mux.Handle("GET /api/auth/admin/users/{id}/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleListUser),
			r.authn(),
			httpx.RequireRole(domain.RoleAdmin.String(), domain.RoleDev.String(), domain.RoleEditor.String()),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys.KeySet),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.denylist, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	if r.registry != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry}))
	}
}
