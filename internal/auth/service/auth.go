package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

// AuthService sequences the sign in flows: credentials, then the second
// factor when one is active, then tokens.
type AuthService struct {
	Store       store.Store
	Credentials *CredentialVerifier
	Tokens      *TokenIssuer
	MFA         *MFAService
	Users       *UserService

	// Captcha is checked before credentials on login and registration.
	// Nil disables it.
	Captcha CaptchaVerifier

	Metrics *Metrics
}

// Session is the outcome of a completed sign in.
type Session struct {
	User   domain.User
	Tokens domain.TokenPair
}

// LoginResult holds either a Session or, for accounts with MFA, a
// Challenge that still has to be answered.
type LoginResult struct {
	Session   *Session
	Challenge *Challenge
}

func (r LoginResult) MFARequired() bool { return r.Challenge != nil }

type LoginInput struct {
	Email        string
	Password     string
	RememberMe   bool
	CaptchaToken string

	// WithRefresh is set by login v2, which always hands out a refresh
	// token alongside the access token.
	WithRefresh bool

	Meta SessionMeta
}

type RegisterInput struct {
	Email        string
	Password     string
	DisplayName  string
	RememberMe   bool
	CaptchaToken string
	Meta         SessionMeta
}

type MFAVerifyInput struct {
	MFAToken string
	Method   domain.MFAKind
	Code     string
	Meta     SessionMeta
}

type LogoutInput struct {
	RefreshToken string
	AccessToken  string
}

// VerifyResult is echoed to clients checking whether their session is
// still good.
type VerifyResult struct {
	Valid    bool
	Username string
	Roles    []string
}

func (s *AuthService) checkCaptcha(ctx context.Context, token string, meta SessionMeta) error {
	if s.Captcha == nil {
		return nil
	}
	return s.Captcha.Verify(ctx, token, meta.IPAddress)
}

// Login checks credentials and either issues tokens or, when the account
// has MFA, a challenge. Unknown emails and wrong passwords fail the same
// way.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if err := s.checkCaptcha(ctx, in.CaptchaToken, in.Meta); err != nil {
		s.Metrics.login(resultFailure)
		return LoginResult{}, err
	}

	u, err := s.Credentials.Verify(ctx, in.Email, in.Password)
	if err != nil {
		s.Metrics.login(resultFailure)
		return LoginResult{}, err
	}

	if u.MFAActive() {
		ch, err := s.MFA.IssueChallenge(ctx, u, ChallengeOptions{
			RememberMe:   in.RememberMe,
			IssueRefresh: in.WithRefresh,
		})
		if err != nil {
			return LoginResult{}, err
		}
		s.Metrics.login(resultMFARequired)
		return LoginResult{Challenge: &ch}, nil
	}

	pair, err := s.Tokens.IssuePair(ctx, u, IssueOptions{
		AMR:         []string{jwtx.AMRPassword},
		RememberMe:  in.RememberMe,
		WithRefresh: in.WithRefresh,
		Meta:        in.Meta,
	})
	if err != nil {
		return LoginResult{}, err
	}

	s.Metrics.login(resultSuccess)
	slogx.FromContext(ctx).Info("login succeeded", slog.String("user_id", u.ID), slog.String("session_id", pair.SessionID))
	return LoginResult{Session: &Session{User: u, Tokens: pair}}, nil
}

// Register creates a viewer account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if err := s.checkCaptcha(ctx, in.CaptchaToken, in.Meta); err != nil {
		return Session{}, err
	}

	u, err := s.Users.Create(ctx, CreateUserInput{
		Email:       in.Email,
		Password:    in.Password,
		DisplayName: in.DisplayName,
		Role:        domain.RoleViewer,
	})
	if err != nil {
		return Session{}, err
	}
	s.Metrics.registered()

	pair, err := s.Tokens.IssuePair(ctx, u, IssueOptions{
		AMR:         []string{jwtx.AMRPassword},
		RememberMe:  in.RememberMe,
		WithRefresh: true,
		Meta:        in.Meta,
	})
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Tokens: pair}, nil
}

// Refresh rotates a refresh token. See TokenIssuer.Rotate.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (Session, error) {
	pair, u, err := s.Tokens.Rotate(ctx, refreshToken, meta)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Tokens: pair}, nil
}

// VerifyMFA answers a login challenge and, when the code is right,
// finishes the login the challenge was issued for.
func (s *AuthService) VerifyMFA(ctx context.Context, in MFAVerifyInput) (Session, error) {
	ctx, span := tracer.Start(ctx, "AuthService.VerifyMFA")
	defer span.End()

	ch, u, err := s.MFA.Redeem(ctx, in.MFAToken, in.Method, in.Code)
	if err != nil {
		return Session{}, err
	}

	pair, err := s.Tokens.IssuePair(ctx, u, IssueOptions{
		AMR:         []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA},
		RememberMe:  ch.RememberMe,
		WithRefresh: ch.IssueRefresh,
		Meta:        in.Meta,
	})
	if err != nil {
		return Session{}, err
	}

	s.Metrics.login(resultSuccess)
	slogx.FromContext(ctx).Info("login succeeded", slog.String("user_id", u.ID), slog.String("session_id", pair.SessionID))
	return Session{User: u, Tokens: pair}, nil
}

// Logout revokes whatever tokens the client presented. It never fails:
// the caller clears cookies regardless, so problems are only logged.
func (s *AuthService) Logout(ctx context.Context, in LogoutInput) {
	ctx, span := tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	l := slogx.FromContext(ctx)
	s.Metrics.logout()

	if in.RefreshToken != "" {
		if err := s.Tokens.Revoke(ctx, in.RefreshToken); err != nil {
			span.RecordError(err)
			l.Warn("logout: refresh token not revoked", slog.Any("err", err))
		}
	}

	if in.AccessToken = strings.TrimSpace(in.AccessToken); in.AccessToken != "" {
		err := s.Tokens.DenyAccess(ctx, in.AccessToken)
		switch {
		case errors.Is(err, ErrInvalidOrExpiredToken):
			l.Debug("logout: access token already unusable")
		case err != nil:
			span.RecordError(err)
			l.Warn("logout: access token not denied", slog.Any("err", err))
		}
	}
}

// Verify reflects the caller back. A missing principal or an account that
// was deactivated since the token was minted is reported as not valid.
func (s *AuthService) Verify(ctx context.Context, p *domain.Principal) (VerifyResult, error) {
	if p == nil {
		return VerifyResult{}, nil
	}

	u, err := s.Store.Users().GetUserByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, nil
		}
		return VerifyResult{}, oops.Code("USER_LOOKUP_FAILED").With("user_id", p.ID).Wrap(err)
	}
	if !u.Active {
		return VerifyResult{}, nil
	}

	return VerifyResult{
		Valid:    true,
		Username: u.Email,
		Roles:    []string{u.Role.String()},
	}, nil
}
