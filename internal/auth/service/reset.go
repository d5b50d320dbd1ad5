package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/idx"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

const DefaultPasswordResetTTL = time.Hour

// PasswordResetService runs the forgotten password flow.
type PasswordResetService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Mailer Mailer

	// BaseURL is the public address of the CMS front end; links point at
	// {BaseURL}/reset-password.
	BaseURL string

	TTL time.Duration
	Now func() time.Time

	pending sync.WaitGroup
}

func (s *PasswordResetService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultPasswordResetTTL
}

// RequestReset mails a reset link to the account owning email, if there is
// an active one. It reports nothing either way and returns before the
// account is looked up, so known and unknown emails take the same time.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) {
	ctx = context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, span := tracer.Start(ctx, "PasswordResetService.RequestReset")
		defer span.End()

		if err := s.requestReset(ctx, email); err != nil {
			span.RecordError(err)
			slogx.FromContext(ctx).Error("password reset request failed", slog.Any("err", err))
		}
	}()
}

// Wait blocks until every reset request handed to RequestReset is done.
func (s *PasswordResetService) Wait() {
	s.pending.Wait()
}

func (s *PasswordResetService) requestReset(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password reset for unknown email")
			return nil
		}
		return oops.Code("USER_LOOKUP_FAILED").Wrap(err)
	}
	if !u.Active {
		l.Info("password reset for inactive account", slog.String("user_id", u.ID))
		return nil
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}

	now := clock(s.Now)
	reset := domain.PasswordReset{
		ID:        idx.NewAt(now).String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.PasswordResets().DeleteUnusedPasswordResets(ctx, u.ID); err != nil {
			return err
		}
		return tx.PasswordResets().CreatePasswordReset(ctx, reset)
	})
	if err != nil {
		return oops.Code("PASSWORD_RESET_CREATE_FAILED").With("user_id", u.ID).Wrap(err)
	}

	link := strings.TrimRight(s.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	err = s.Mailer.Send(ctx, Message{
		To:      u.Email,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Someone asked to reset the password of your account.\n\n%s\n\n"+
			"The link works once and expires in %d minutes. If it was not you, ignore this email.\n",
			link, int(s.ttl()/time.Minute)),
	})
	if err != nil {
		return oops.Code("PASSWORD_RESET_MAIL_FAILED").With("user_id", u.ID).Wrap(err)
	}

	l.Info("password reset mailed", slog.String("user_id", u.ID))
	return nil
}

// Reset sets a new password with a mailed token and signs the account out
// everywhere.
func (s *PasswordResetService) Reset(ctx context.Context, token, password string) error {
	ctx, span := tracer.Start(ctx, "PasswordResetService.Reset")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	// Hashing is slow; keep it out of the write transaction.
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	now := clock(s.Now)
	var userID string
	var revoked int64

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		reset, err := tx.PasswordResets().GetPasswordResetByHash(ctx, cryptox.FingerprintToken(token))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return err
		}
		if reset.UsedAt != nil || !now.Before(reset.ExpiresAt) {
			return ErrInvalidOrExpiredToken
		}

		ok, err := tx.PasswordResets().MarkPasswordResetUsed(ctx, reset.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidOrExpiredToken
		}

		u, err := tx.Users().GetUserByID(ctx, reset.UserID)
		if err != nil {
			return err
		}
		if !u.Active {
			return ErrInvalidOrExpiredToken
		}

		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, hash, now); err != nil {
			return err
		}
		revoked, err = tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, u.ID, now)
		userID = u.ID
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			return ErrInvalidOrExpiredToken
		}
		span.RecordError(err)
		return oops.Code("PASSWORD_RESET_FAILED").Wrap(err)
	}

	slogx.FromContext(ctx).Info("password reset",
		slog.String("user_id", userID),
		slog.Int64("sessions_revoked", revoked),
	)
	return nil
}
