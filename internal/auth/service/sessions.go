package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

// SessionService lists and revokes refresh sessions.
type SessionService struct {
	Store store.Store
	Now   func() time.Time
}

// ListOwn returns the caller's live sessions.
func (s *SessionService) ListOwn(ctx context.Context, p domain.Principal) ([]domain.RefreshToken, error) {
	return s.list(ctx, p.ID)
}

// List returns the live sessions of ownerID, which must be inside the
// caller's scope.
func (s *SessionService) List(ctx context.Context, p domain.Principal, ownerID string) ([]domain.RefreshToken, error) {
	if !domain.ScopeFor(p.Role, p.ID).Permits(ownerID) {
		slogx.FromContext(ctx).Info("session listing out of scope",
			slog.String("user_id", p.ID),
			slog.String("owner_id", ownerID),
		)
		return nil, ErrForbidden
	}
	return s.list(ctx, ownerID)
}

func (s *SessionService) list(ctx context.Context, ownerID string) ([]domain.RefreshToken, error) {
	tokens, err := s.Store.RefreshTokens().ListActiveRefreshTokens(ctx, ownerID, clock(s.Now))
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("user_id", ownerID).Wrap(err)
	}
	return tokens, nil
}

// Revoke ends one of the caller's sessions.
func (s *SessionService) Revoke(ctx context.Context, p domain.Principal, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrNotFound
	}

	n, err := s.Store.RefreshTokens().RevokeSession(ctx, p.ID, sessionID, clock(s.Now))
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").With("session_id", sessionID).Wrap(err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slogx.FromContext(ctx).Info("session revoked", slog.String("user_id", p.ID), slog.String("session_id", sessionID))
	return nil
}
