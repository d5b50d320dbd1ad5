package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/aussiebroadwan/quill/pkg/httpx"
)

// MFAHandler handles all MFA-related endpoints.
type MFAHandler struct {
	MFA     *service.MFAService
	Auth    *service.AuthService
	Cookies *CookieBinder
}

// HandleSetup handles POST /api/auth/mfa/setup
//
//	@Summary		Start MFA enrolment
//	@Description	For totp, generates a secret to load into an authenticator app; confirm it with /api/auth/mfa/verify-setup.
//	@Description	For email, enables email codes immediately.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFASetupRequest		true	"Method: totp or email"
//	@Success		200		{object}	authsdk.MFASetupResponse	"Enrolment state"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Unknown method"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		409		{object}	authsdk.ErrorResponse		"MFA already enabled"
//	@Router			/api/auth/mfa/setup [post].
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req authsdk.MFASetupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	kind, err := domain.ParseMFAKind(strings.ToLower(strings.TrimSpace(req.Method)))
	if err != nil {
		authsdk.ErrInvalidRequest.WithDescription("method must be totp or email").WriteError(w)
		return
	}

	res, err := h.MFA.Setup(ctx, p, kind)
	if err != nil {
		writeError(ctx, w, "mfa setup failed", err)
		return
	}

	resp := authsdk.MFASetupResponse{Method: string(res.Method), Enabled: res.Enabled}
	if res.TOTP != nil {
		resp.Secret = res.TOTP.Secret
		resp.OTPAuthURL = res.TOTP.URL
		resp.Issuer = res.TOTP.Issuer
		resp.Account = res.TOTP.Account
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleVerifySetup handles POST /api/auth/mfa/verify-setup
//
//	@Summary		Confirm TOTP enrolment
//	@Description	Checks the first code from the authenticator app, enables TOTP and returns ten single-use backup codes. They are shown once.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFAVerifySetupRequest	true	"TOTP code"
//	@Success		200		{object}	authsdk.MFAVerifySetupResponse	"Backup codes"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Wrong code or nothing pending"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid or missing access token"
//	@Router			/api/auth/mfa/verify-setup [post].
func (h *MFAHandler) HandleVerifySetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req authsdk.MFAVerifySetupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Code == "" {
		authsdk.ErrInvalidRequest.WithDescription("code is required").WriteError(w)
		return
	}

	codes, err := h.MFA.VerifySetup(ctx, p, req.Code)
	if err != nil {
		writeError(ctx, w, "mfa verify setup failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MFAVerifySetupResponse{Enabled: true, BackupCodes: codes})
}

// HandleVerify handles POST /api/auth/mfa/verify
//
//	@Summary		Answer a login challenge
//	@Description	Completes a login that returned mfa_required. Sets the same cookies the original login would have.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFAVerifyRequest	true	"Challenge token, method and code"
//	@Success		200		{object}	authsdk.LoginResponse		"Session"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Wrong code"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Challenge unknown or expired"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Too many wrong codes"
//	@Router			/api/auth/mfa/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.MFAVerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	var method domain.MFAKind
	if req.Method != "" {
		m, err := domain.ParseMFAKind(strings.ToLower(strings.TrimSpace(req.Method)))
		if err != nil {
			authsdk.ErrInvalidRequest.WithDescription("method must be totp, email or recovery").WriteError(w)
			return
		}
		method = m
	}

	s, err := h.Auth.VerifyMFA(ctx, service.MFAVerifyInput{
		MFAToken: req.MFAToken,
		Method:   method,
		Code:     strings.TrimSpace(req.Code),
		Meta:     sessionMeta(r),
	})
	if err != nil {
		writeError(ctx, w, "mfa verify failed", err)
		return
	}
	writeSession(w, h.Cookies, http.StatusOK, s)
}

// HandleSendEmailOTP handles POST /api/auth/mfa/send-email-otp
//
//	@Summary		Mail a login code
//	@Description	Sends a fresh six digit code for an email challenge. Earlier codes for the challenge stop working.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SendEmailOTPRequest		true	"Challenge token"
//	@Success		202		{object}	authsdk.SendEmailOTPResponse	"Code sent"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Challenge is not for email"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Challenge unknown or expired"
//	@Router			/api/auth/mfa/send-email-otp [post].
func (h *MFAHandler) HandleSendEmailOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.SendEmailOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	expiresAt, err := h.MFA.SendEmailOTP(ctx, req.MFAToken)
	if err != nil {
		writeError(ctx, w, "send email otp failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.SendEmailOTPResponse{
		Sent:      true,
		ExpiresIn: int(time.Until(expiresAt).Round(time.Second).Seconds()),
	})
}

// HandleDisable handles DELETE /api/auth/mfa/disable
//
//	@Summary		Turn MFA off
//	@Description	Re-checks the password, then removes the MFA method and any backup codes.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.MFADisableRequest	true	"Current password"
//	@Success		204		"MFA disabled"
//	@Failure		400		{object}	authsdk.ErrorResponse	"MFA not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Wrong password or invalid access token"
//	@Router			/api/auth/mfa/disable [delete].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req authsdk.MFADisableRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Password == "" {
		authsdk.ErrInvalidRequest.WithDescription("password is required").WriteError(w)
		return
	}

	if err := h.MFA.Disable(ctx, p, req.Password); err != nil {
		writeError(ctx, w, "mfa disable failed", err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus handles GET /api/auth/mfa/status
//
//	@Summary		MFA status
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MFAStatusResponse	"Current MFA configuration"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Router			/api/auth/mfa/status [get].
func (h *MFAHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	st, err := h.MFA.Status(ctx, p)
	if err != nil {
		writeError(ctx, w, "mfa status failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MFAStatusResponse{
		Enabled:              st.Enabled,
		Method:               string(st.Method),
		PendingSetup:         st.PendingSetup,
		BackupCodesRemaining: st.BackupCodesRemaining,
	})
}
