package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/idx"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

const (
	DefaultRefreshTTL    = 24 * time.Hour
	DefaultRememberMeTTL = 7 * 24 * time.Hour
)

// SessionMeta describes the client a refresh session belongs to.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// IssueOptions control what IssuePair mints.
type IssueOptions struct {
	// SessionID continues an existing session. Empty starts a new one.
	SessionID string

	// AMR records how the user authenticated. Defaults to password.
	AMR []string

	RememberMe bool

	// WithRefresh also creates a refresh token. Login v1 only hands out an
	// access token.
	WithRefresh bool

	Meta SessionMeta
}

// TokenIssuer mints access JWTs and opaque rotating refresh tokens.
type TokenIssuer struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store

	// Denylist receives access tokens revoked at logout. Defaults to the
	// Store's own table.
	Denylist store.Denylist

	Issuer   string
	Audience string

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration

	Metrics *Metrics
	Now     func() time.Time
}

func (s *TokenIssuer) accessTTL() time.Duration {
	if s.AccessTTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return s.AccessTTL
}

// AccessLifetime is how long minted access tokens stay valid.
func (s *TokenIssuer) AccessLifetime() time.Duration { return s.accessTTL() }

// RefreshLifetime is how long a refresh token of the given kind lives.
func (s *TokenIssuer) RefreshLifetime(rememberMe bool) time.Duration {
	if rememberMe {
		if s.RememberMeTTL > 0 {
			return s.RememberMeTTL
		}
		return DefaultRememberMeTTL
	}
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return DefaultRefreshTTL
}

func (s *TokenIssuer) denylist() store.Denylist {
	if s.Denylist != nil {
		return s.Denylist
	}
	return s.Store.Denylist()
}

// IssuePair signs an access token for u and, when asked, stores a new
// refresh token for the same session.
func (s *TokenIssuer) IssuePair(ctx context.Context, u domain.User, opts IssueOptions) (domain.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "TokenIssuer.IssuePair")
	defer span.End()

	pair, err := s.issue(ctx, s.Store, u, opts, clock(s.Now))
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, oops.Code("TOKEN_ISSUE_FAILED").With("user_id", u.ID).Wrap(err)
	}
	return pair, nil
}

func (s *TokenIssuer) issue(ctx context.Context, st store.Store, u domain.User, opts IssueOptions, now time.Time) (domain.TokenPair, error) {
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = idx.New().String()
	}

	amr := opts.AMR
	if len(amr) == 0 {
		amr = []string{jwtx.AMRPassword}
	}

	var audience []string
	if s.Audience != "" {
		audience = []string{s.Audience}
	}

	claims := jwtx.NewAccessClaims(jwtx.Subject{
		ID:    u.ID,
		Role:  u.Role.String(),
		Email: u.Email,
		Name:  u.DisplayName,
	}, sessionID, amr, s.Issuer, audience, s.accessTTL(), now)

	access, err := s.KeyManager.Signer().Sign(claims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	pair := domain.TokenPair{
		AccessToken:     access,
		AccessExpiresAt: claims.Expiry(),
		RememberMe:      opts.RememberMe,
		SessionID:       sessionID,
	}
	if !opts.WithRefresh {
		return pair, nil
	}

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	refresh := domain.RefreshToken{
		ID:         idx.NewAt(now).String(),
		UserID:     u.ID,
		SessionID:  sessionID,
		TokenHash:  cryptox.FingerprintToken(opaque),
		AMR:        amr,
		RememberMe: opts.RememberMe,
		UserAgent:  opts.Meta.UserAgent,
		IPAddress:  opts.Meta.IPAddress,
		ExpiresAt:  now.Add(s.RefreshLifetime(opts.RememberMe)),
		CreatedAt:  now,
	}
	if err := st.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	pair.RefreshToken = opaque
	pair.RefreshExpiresAt = refresh.ExpiresAt
	return pair, nil
}

// Rotate exchanges a refresh token for a new pair in the same session.
//
// The presented token is claimed with a single conditional update, so of
// any number of concurrent callers exactly one gets a new pair and the
// rest see ErrInvalidOrExpiredToken. Expired tokens and tokens of inactive
// accounts are revoked on the way out. Storage failures are reported as
// ErrInvalidOrExpiredToken, wrapping the cause.
func (s *TokenIssuer) Rotate(ctx context.Context, raw string, meta SessionMeta) (domain.TokenPair, domain.User, error) {
	ctx, span := tracer.Start(ctx, "TokenIssuer.Rotate")
	defer span.End()

	l := slogx.FromContext(ctx)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		s.Metrics.refresh(resultInvalidToken)
		return domain.TokenPair{}, domain.User{}, ErrInvalidOrExpiredToken
	}

	now := clock(s.Now)
	hash := cryptox.FingerprintToken(raw)

	var (
		pair    domain.TokenPair
		user    domain.User
		outcome error
	)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		old, err := tx.RefreshTokens().ClaimRefreshToken(ctx, hash, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return err
		}

		// From here on the old token is revoked; returning nil commits that
		// even when no new pair is issued.
		if old.Expired(now) {
			l.Info("refresh with expired token", slog.String("session_id", old.SessionID))
			outcome = ErrInvalidOrExpiredToken
			return nil
		}

		u, err := tx.Users().GetUserByID(ctx, old.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				outcome = ErrInvalidOrExpiredToken
				return nil
			}
			return err
		}
		if !u.Active {
			l.Info("refresh for inactive account", slog.String("user_id", u.ID))
			outcome = ErrAccountInactive
			return nil
		}

		pair, err = s.issue(ctx, tx, u, IssueOptions{
			SessionID:   old.SessionID,
			AMR:         old.AMR,
			RememberMe:  old.RememberMe,
			WithRefresh: true,
			Meta:        meta,
		}, now)
		user = u
		return err
	})

	switch {
	case errors.Is(err, ErrInvalidOrExpiredToken):
		s.Metrics.refresh(resultInvalidToken)
		return domain.TokenPair{}, domain.User{}, ErrInvalidOrExpiredToken
	case err != nil:
		span.RecordError(err)
		s.Metrics.refresh(resultFailure)
		return domain.TokenPair{}, domain.User{}, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken,
			oops.Code("REFRESH_ROTATE_FAILED").Wrap(err))
	case outcome != nil:
		s.Metrics.refresh(resultInvalidToken)
		return domain.TokenPair{}, domain.User{}, outcome
	}

	s.Metrics.refresh(resultSuccess)
	l.Debug("refresh token rotated", slog.String("user_id", user.ID), slog.String("session_id", pair.SessionID))
	return pair, user, nil
}

// Revoke invalidates a refresh token. Unknown and already revoked tokens
// are not an error.
func (s *TokenIssuer) Revoke(ctx context.Context, raw string) error {
	ctx, span := tracer.Start(ctx, "TokenIssuer.Revoke")
	defer span.End()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, cryptox.FingerprintToken(raw), clock(s.Now)); err != nil {
		span.RecordError(err)
		return oops.Code("REFRESH_REVOKE_FAILED").Wrap(err)
	}
	return nil
}

// DenyAccess stops a still valid access token from being accepted until it
// expires. Tokens that no longer verify give ErrInvalidOrExpiredToken.
func (s *TokenIssuer) DenyAccess(ctx context.Context, raw string) error {
	ctx, span := tracer.Start(ctx, "TokenIssuer.DenyAccess")
	defer span.End()

	claims, err := s.KeyManager.Verifier.Verify(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}
	if claims.ID == "" {
		return ErrInvalidOrExpiredToken
	}

	if err := s.denylist().DenyAccessToken(ctx, claims.ID, claims.Subject, claims.Expiry()); err != nil {
		span.RecordError(err)
		return oops.Code("ACCESS_DENY_FAILED").With("jti", claims.ID).Wrap(err)
	}
	return nil
}
