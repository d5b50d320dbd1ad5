package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/idx"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

const (
	MinPasswordLength    = 10
	MaxPasswordLength    = 128
	maxDisplayNameLength = 100
)

type UserService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Now    func() time.Time
}

type CreateUserInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        domain.Role
}

// ValidatePassword enforces the length policy. Length is what matters for
// a slow hash; composition rules are not imposed.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < MinPasswordLength:
		return withReason(ErrWeakPassword, "password must be at least 10 characters")
	case n > MaxPasswordLength:
		return withReason(ErrWeakPassword, "password must be at most 128 characters")
	}
	return nil
}

func validateEmail(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.IndexByte(email, '@')+1:], ".") {
		return "", withReason(ErrInvalidRequest, "a valid email address is required")
	}
	return email, nil
}

// Create adds an active account. The display name defaults to the local
// part of the email.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Create")
	defer span.End()

	email, err := validateEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return domain.User{}, err
	}

	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return domain.User{}, withReason(ErrInvalidRequest, "display name must be at most 100 characters")
	}

	role := in.Role
	if role == "" {
		role = domain.RoleViewer
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return domain.User{}, withReason(ErrInvalidRequest, err.Error())
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	now := clock(s.Now)
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailUnavailable
		}
		span.RecordError(err)
		return domain.User{}, oops.Code("USER_CREATE_FAILED").Wrap(err)
	}

	slogx.FromContext(ctx).Info("user created", slog.String("user_id", u.ID), slog.String("role", u.Role.String()))
	return u, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, oops.Code("USER_LOOKUP_FAILED").Wrap(err)
	}
	return u, nil
}

// SetRole changes the role of the account owning email. Tokens already
// issued keep the old role until they are refreshed.
func (s *UserService) SetRole(ctx context.Context, email string, role domain.Role) (domain.User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}

	now := clock(s.Now)
	if err := s.Store.Users().UpdateRole(ctx, u.ID, role, now); err != nil {
		return domain.User{}, oops.Code("USER_UPDATE_FAILED").With("user_id", u.ID).Wrap(err)
	}

	slogx.FromContext(ctx).Info("user role changed",
		slog.String("user_id", u.ID),
		slog.String("from", u.Role.String()),
		slog.String("to", role.String()),
	)
	u.Role, u.UpdatedAt = role, now
	return u, nil
}

// SetActive activates or deactivates an account. Deactivation also revokes
// every refresh session, so the account is locked out once its access
// tokens expire.
func (s *UserService) SetActive(ctx context.Context, email string, active bool) (domain.User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}

	now := clock(s.Now)
	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetActive(ctx, u.ID, active, now); err != nil {
			return err
		}
		if active {
			return nil
		}
		revoked, err = tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, u.ID, now)
		return err
	})
	if err != nil {
		return domain.User{}, oops.Code("USER_UPDATE_FAILED").With("user_id", u.ID).Wrap(err)
	}

	slogx.FromContext(ctx).Info("user activation changed",
		slog.String("user_id", u.ID),
		slog.Bool("active", active),
		slog.Int64("sessions_revoked", revoked),
	)
	u.Active, u.UpdatedAt = active, now
	return u, nil
}
