package http

import (
	"net/http"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/aussiebroadwan/quill/pkg/httpx"
)

// principalFrom resolves the caller from the claims AuthnMiddleware (or
// OptionalAuthn) attached to the request.
func principalFrom(r *http.Request) (domain.Principal, bool) {
	c, ok := httpx.ClaimsFromContext(r.Context())
	if !ok || c.Subject == "" {
		return domain.Principal{}, false
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Principal{}, false
	}
	return domain.Principal{
		ID:        c.Subject,
		Role:      role,
		Email:     c.Email,
		SessionID: c.SID,
	}, true
}

// requirePrincipal writes 401 and returns false when the request carries
// no usable principal.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := principalFrom(r)
	if !ok {
		authsdk.ErrInvalidOrExpiredToken.WriteError(w)
	}
	return p, ok
}

func sessionMeta(r *http.Request) service.SessionMeta {
	return service.SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: httpx.IPKeyExtractor(r),
	}
}

func userInfo(u domain.User) *authsdk.UserInfo {
	return &authsdk.UserInfo{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role.String(),
		MFAEnabled:  u.MFAActive(),
	}
}

func kindsToStrings(kinds []domain.MFAKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
