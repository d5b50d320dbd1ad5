package http

import (
	"net/http"

	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/aussiebroadwan/quill/pkg/httpx"
)

type PasswordHandler struct {
	Resets *service.PasswordResetService
}

// HandleForgot handles POST /api/auth/password/forgot
//
//	@Summary		Request a password reset link
//	@Description	Mails a one hour reset link when the email belongs to an active account. The response is the same either way.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		202		{object}	authsdk.AcceptedResponse		"Accepted"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Malformed request"
//	@Router			/api/auth/password/forgot [post].
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if req.Email != "" {
		h.Resets.RequestReset(r.Context(), req.Email)
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.AcceptedResponse{Status: "accepted"})
}

// HandleReset handles POST /api/auth/password/reset
//
//	@Summary		Set a new password
//	@Description	Uses a reset token to set a new password. Every session of the account is signed out.
//	@Tags			Password
//	@Accept			json
//	@Param			request	body	authsdk.ResetPasswordRequest	true	"Token and new password"
//	@Success		204		"Password changed"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Weak password"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Token unknown, used or expired"
//	@Router			/api/auth/password/reset [post].
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Resets.Reset(ctx, req.Token, req.Password); err != nil {
		writeError(ctx, w, "password reset failed", err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
