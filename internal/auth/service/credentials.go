package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

// CredentialVerifier checks an email and password pair.
type CredentialVerifier struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
}

// Verify returns the active user owning email when password matches.
// Unknown emails, wrong passwords and inactive accounts are all reported as
// ErrInvalidCredentials, and unknown emails still pay for a hash.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "CredentialVerifier.Verify")
	defer span.End()

	l := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	u, err := v.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v.Hasher.VerifyDummy(password)
			l.Info("login for unknown email")
			return domain.User{}, ErrInvalidCredentials
		}
		span.RecordError(err)
		return domain.User{}, oops.Code("USER_LOOKUP_FAILED").Wrap(err)
	}

	if err := v.Hasher.Verify(password, u.PasswordHash); err != nil {
		l.Info("login with wrong password", slog.String("user_id", u.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	if !u.Active {
		l.Info("login for inactive account", slog.String("user_id", u.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	return u, nil
}
