package http

import (
	"net/http"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/aussiebroadwan/quill/pkg/httpx"
)

// AuthHandler serves the sign in, registration and session lifecycle
// endpoints under /api/auth.
type AuthHandler struct {
	Auth    *service.AuthService
	Cookies *CookieBinder
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, withRefresh bool) {
	ctx := r.Context()

	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.WithDescription("email and password are required").WriteError(w)
		return
	}

	res, err := h.Auth.Login(ctx, service.LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		RememberMe:   req.RememberMe,
		CaptchaToken: req.RecaptchaToken,
		WithRefresh:  withRefresh,
		Meta:         sessionMeta(r),
	})
	if err != nil {
		writeError(ctx, w, "login failed", err)
		return
	}

	if res.MFARequired() {
		writeChallenge(w, res.Challenge)
		return
	}
	writeSession(w, h.Cookies, http.StatusOK, *res.Session)
}

// writeSession sets the session cookies and writes the login body. Sessions
// without a refresh token (legacy login) also carry the access token in the
// body.
func writeSession(w http.ResponseWriter, b *CookieBinder, status int, s service.Session) {
	b.SetSession(w, s.Tokens)

	resp := authsdk.LoginResponse{
		TokenType: "Bearer",
		ExpiresIn: int(b.AccessTTL.Seconds()),
		User:      userInfo(s.User),
	}
	if s.Tokens.RefreshToken == "" {
		resp.AccessToken = s.Tokens.AccessToken
	}
	httpx.WriteJSON(w, status, resp)
}

func writeChallenge(w http.ResponseWriter, ch *service.Challenge) {
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		MFARequired: true,
		MFAToken:    ch.Token,
		MFAMethods:  kindsToStrings(ch.Methods),
	})
}

// HandleLogin handles POST /api/auth/login
//
//	@Summary		Sign in (legacy)
//	@Description	Checks email and password. Without MFA the access token is set as a cookie and returned in the body; no refresh token is issued.
//	@Description	With MFA a challenge is returned instead; answer it at /api/auth/mfa/verify.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Session or MFA challenge"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request or captcha failure"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, false)
}

// HandleLoginV2 handles POST /api/auth/login/v2
//
//	@Summary		Sign in
//	@Description	Checks email and password and sets the access_token and refresh_token cookies. With MFA a challenge is returned instead.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Session or MFA challenge"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request or captcha failure"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/api/auth/login/v2 [post].
func (h *AuthHandler) HandleLoginV2(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, true)
}

// HandleRegister handles POST /api/auth/register
//
//	@Summary		Create an account
//	@Description	Creates a viewer account and signs it in with both cookies.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"New account"
//	@Success		201		{object}	authsdk.LoginResponse	"Session"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid email, weak password or captcha failure"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Email already registered"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	s, err := h.Auth.Register(ctx, service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		RememberMe:   req.RememberMe,
		CaptchaToken: req.RecaptchaToken,
		Meta:         sessionMeta(r),
	})
	if err != nil {
		writeError(ctx, w, "registration failed", err)
		return
	}
	writeSession(w, h.Cookies, http.StatusCreated, s)
}

// HandleRefresh handles POST /api/auth/refresh
//
//	@Summary		Rotate the refresh token
//	@Description	Exchanges the refresh_token cookie for a new access and refresh token. The presented token is single use.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.LoginResponse	"New session cookies"
//	@Failure		400	{object}	authsdk.ErrorResponse	"No refresh cookie"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Refresh token invalid, expired or already used"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Account deactivated"
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := RefreshTokenFromRequest(r)
	if raw == "" {
		authsdk.ErrInvalidRequest.WithDescription("refresh token cookie missing").WriteError(w)
		return
	}

	s, err := h.Auth.Refresh(ctx, raw, sessionMeta(r))
	if err != nil {
		writeError(ctx, w, "refresh failed", err)
		return
	}
	writeSession(w, h.Cookies, http.StatusOK, s)
}

// HandleLogout handles POST /api/auth/logout
//
//	@Summary		Sign out
//	@Description	Revokes the presented refresh token, denies the access token and clears both cookies. Always succeeds.
//	@Tags			Auth
//	@Success		204	"Signed out"
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Auth.Logout(r.Context(), service.LogoutInput{
		RefreshToken: RefreshTokenFromRequest(r),
		AccessToken:  httpx.AccessTokenFromRequest(r),
	})

	h.Cookies.Clear(w)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleVerify handles GET /api/auth/verify
//
//	@Summary		Check the access token
//	@Description	Reports whether the caller holds a valid access token and for whom. A missing or invalid token gives valid=false, not an error.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.VerifyResponse	"valid, username, roles"
//	@Router			/api/auth/verify [get].
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var p *domain.Principal
	if got, ok := principalFrom(r); ok {
		p = &got
	}

	res, err := h.Auth.Verify(ctx, p)
	if err != nil {
		writeError(ctx, w, "verify failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyResponse{
		Valid:    res.Valid,
		Username: res.Username,
		Roles:    res.Roles,
	})
}
