package http

import (
	"net/http"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/aussiebroadwan/quill/pkg/httpx"
)

type SessionsHandler struct {
	Sessions *service.SessionService
}

func sessionsResponse(tokens []domain.RefreshToken, current string) authsdk.ListSessionsResponse {
	out := authsdk.ListSessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(tokens))}
	for _, t := range tokens {
		out.Sessions = append(out.Sessions, authsdk.SessionInfo{
			ID:         t.SessionID,
			CreatedAt:  t.CreatedAt,
			ExpiresAt:  t.ExpiresAt,
			RememberMe: t.RememberMe,
			UserAgent:  t.UserAgent,
			IPAddress:  t.IPAddress,
			Current:    current != "" && t.SessionID == current,
		})
	}
	return out
}

// HandleList handles GET /api/auth/sessions
//
//	@Summary		List my sessions
//	@Description	Lists the signed in devices of the caller. The session of the presented access token is marked current.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ListSessionsResponse	"Active sessions"
//	@Failure		401	{object}	authsdk.ErrorResponse			"Invalid or missing access token"
//	@Router			/api/auth/sessions [get].
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	tokens, err := h.Sessions.ListOwn(ctx, p)
	if err != nil {
		writeError(ctx, w, "list sessions failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionsResponse(tokens, p.SessionID))
}

// HandleRevoke handles DELETE /api/auth/sessions/{id}
//
//	@Summary		Sign out a session
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Session revoked"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		404	{object}	authsdk.ErrorResponse	"No such session"
//	@Router			/api/auth/sessions/{id} [delete].
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	if err := h.Sessions.Revoke(ctx, p, r.PathValue("id")); err != nil {
		writeError(ctx, w, "revoke session failed", err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListUser handles GET /api/auth/admin/users/{id}/sessions
//
//	@Summary		List a user's sessions
//	@Description	Admins may list anyone; devs and editors only themselves.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string							true	"User ID"
//	@Success		200	{object}	authsdk.ListSessionsResponse	"Active sessions"
//	@Failure		401	{object}	authsdk.ErrorResponse			"Invalid or missing access token"
//	@Failure		403	{object}	authsdk.ErrorResponse			"User outside the caller's scope"
//	@Router			/api/auth/admin/users/{id}/sessions [get].
func (h *SessionsHandler) HandleListUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	tokens, err := h.Sessions.List(ctx, p, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, "list user sessions failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionsResponse(tokens, p.SessionID))
}
