package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/idx"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

const (
	// MaxMFAAttempts is the number of wrong codes a challenge survives.
	MaxMFAAttempts = 5

	DefaultChallengeTTL = 5 * time.Minute
	DefaultEmailOTPTTL  = 5 * time.Minute

	emailOTPDigits = 6
)

// ChallengeOptions carry the login choices over to the final session.
type ChallengeOptions struct {
	RememberMe   bool
	IssueRefresh bool
}

// Challenge is handed to a client whose password was right but who still
// owes a second factor.
type Challenge struct {
	Token     string
	Methods   []domain.MFAKind
	ExpiresAt time.Time
}

var errWrongCode = errors.New("wrong code")

func (s *MFAService) challengeTTL() time.Duration {
	if s.ChallengeTTL > 0 {
		return s.ChallengeTTL
	}
	return DefaultChallengeTTL
}

func (s *MFAService) emailOTPTTL() time.Duration {
	if s.EmailOTPTTL > 0 {
		return s.EmailOTPTTL
	}
	return DefaultEmailOTPTTL
}

// IssueChallenge stores a challenge for u, whose MFA must be active.
func (s *MFAService) IssueChallenge(ctx context.Context, u domain.User, opts ChallengeOptions) (Challenge, error) {
	ctx, span := tracer.Start(ctx, "MFAService.IssueChallenge")
	defer span.End()

	if !u.MFAActive() {
		return Challenge{}, ErrMFANotEnabled
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return Challenge{}, fmt.Errorf("generate mfa token: %w", err)
	}

	now := clock(s.Now)
	ch := domain.MFAChallenge{
		ID:           idx.NewAt(now).String(),
		TokenHash:    cryptox.FingerprintToken(token),
		UserID:       u.ID,
		Method:       u.MFA.Kind(),
		RememberMe:   opts.RememberMe,
		IssueRefresh: opts.IssueRefresh,
		ExpiresAt:    now.Add(s.challengeTTL()),
		CreatedAt:    now,
	}
	if err := s.Store.MFAChallenges().CreateChallenge(ctx, ch); err != nil {
		span.RecordError(err)
		return Challenge{}, oops.Code("MFA_CHALLENGE_FAILED").With("user_id", u.ID).Wrap(err)
	}

	slogx.FromContext(ctx).Info("mfa challenge issued",
		slog.String("user_id", u.ID),
		slog.String("method", string(ch.Method)),
	)

	return Challenge{
		Token:     token,
		Methods:   domain.VerificationKinds(u.MFA),
		ExpiresAt: ch.ExpiresAt,
	}, nil
}

// liveChallenge resolves an MFA token to its challenge, treating unknown and
// expired challenges alike.
func (s *MFAService) liveChallenge(ctx context.Context, token string, now time.Time) (domain.MFAChallenge, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.MFAChallenge{}, ErrInvalidOrExpiredToken
	}

	ch, err := s.Store.MFAChallenges().GetChallengeByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAChallenge{}, ErrInvalidOrExpiredToken
		}
		return domain.MFAChallenge{}, oops.Code("MFA_CHALLENGE_LOOKUP_FAILED").Wrap(err)
	}
	if !now.Before(ch.ExpiresAt) {
		return domain.MFAChallenge{}, ErrInvalidOrExpiredToken
	}
	return ch, nil
}

// SendEmailOTP mails a fresh code for an email challenge. Earlier unused
// codes of the challenge stop working. It returns when the code expires.
func (s *MFAService) SendEmailOTP(ctx context.Context, mfaToken string) (time.Time, error) {
	ctx, span := tracer.Start(ctx, "MFAService.SendEmailOTP")
	defer span.End()

	now := clock(s.Now)
	ch, err := s.liveChallenge(ctx, mfaToken, now)
	if err != nil {
		return time.Time{}, err
	}
	if ch.Method != domain.MFAKindEmail {
		return time.Time{}, withReason(ErrInvalidRequest, "challenge does not use email codes")
	}
	if ch.Attempts >= MaxMFAAttempts {
		return time.Time{}, ErrTooManyRequests
	}

	u, err := s.user(ctx, s.Store, ch.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.Time{}, ErrInvalidOrExpiredToken
		}
		return time.Time{}, err
	}

	code, err := cryptox.GenerateNumericCode(emailOTPDigits)
	if err != nil {
		return time.Time{}, fmt.Errorf("generate email code: %w", err)
	}

	expiresAt := now.Add(s.emailOTPTTL())
	if ch.ExpiresAt.Before(expiresAt) {
		expiresAt = ch.ExpiresAt
	}

	otpCode := domain.EmailOTP{
		ID:          idx.NewAt(now).String(),
		ChallengeID: ch.ID,
		UserID:      u.ID,
		CodeHash:    cryptox.FingerprintToken(code),
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.EmailOTPs().InvalidateForChallenge(ctx, ch.ID, now); err != nil {
			return err
		}
		return tx.EmailOTPs().CreateEmailOTP(ctx, otpCode)
	})
	if err != nil {
		span.RecordError(err)
		return time.Time{}, oops.Code("EMAIL_OTP_FAILED").With("challenge_id", ch.ID).Wrap(err)
	}

	minutes := int(expiresAt.Sub(now).Round(time.Minute) / time.Minute)
	err = s.Mailer.Send(ctx, Message{
		To:      u.Email,
		Subject: "Your sign-in code",
		Body: fmt.Sprintf("Your sign-in code is %s.\n\nIt expires in %d minutes. If you did not try to sign in, change your password.\n",
			code, max(minutes, 1)),
	})
	if err != nil {
		span.RecordError(err)
		return time.Time{}, oops.Code("EMAIL_OTP_SEND_FAILED").With("user_id", u.ID).Wrap(err)
	}

	slogx.FromContext(ctx).Info("email otp sent", slog.String("user_id", u.ID))
	return expiresAt, nil
}

// Redeem answers a challenge. A right code consumes the challenge, and the
// email code or backup code used, and returns the challenge and its user.
//
// Wrong codes count against the challenge; the MaxMFAAttempts-th destroys
// it. Of concurrent right answers only one wins, the others see
// ErrInvalidOrExpiredToken.
func (s *MFAService) Redeem(ctx context.Context, mfaToken string, method domain.MFAKind, code string) (domain.MFAChallenge, domain.User, error) {
	ctx, span := tracer.Start(ctx, "MFAService.Redeem")
	defer span.End()

	now := clock(s.Now)
	ch, err := s.liveChallenge(ctx, mfaToken, now)
	if err != nil {
		return domain.MFAChallenge{}, domain.User{}, err
	}

	l := slogx.FromContext(ctx).With(slog.String("user_id", ch.UserID), slog.String("challenge_id", ch.ID))

	if ch.Attempts >= MaxMFAAttempts {
		s.Metrics.mfaAnswer(string(ch.Method), resultLockedOut)
		return domain.MFAChallenge{}, domain.User{}, ErrTooManyRequests
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return domain.MFAChallenge{}, domain.User{}, withReason(ErrInvalidRequest, "code is required")
	}

	u, err := s.user(ctx, s.Store, ch.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.MFAChallenge{}, domain.User{}, ErrInvalidOrExpiredToken
		}
		return domain.MFAChallenge{}, domain.User{}, err
	}

	// The account changed since the challenge was issued.
	if !u.Active || !u.MFAActive() || u.MFA.Kind() != ch.Method {
		l.Info("mfa challenge no longer matches account")
		return domain.MFAChallenge{}, domain.User{}, ErrInvalidOrExpiredToken
	}

	if method == "" {
		method = ch.Method
	}
	if !slices.Contains(domain.VerificationKinds(u.MFA), method) {
		return domain.MFAChallenge{}, domain.User{}, withReason(ErrInvalidRequest,
			fmt.Sprintf("method %q cannot answer this challenge", method))
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := s.consumeCode(ctx, tx, u, ch, method, code, now)
		if err != nil {
			return err
		}
		if !ok {
			return errWrongCode
		}

		won, err := tx.MFAChallenges().ConsumeChallenge(ctx, ch.ID)
		if err != nil {
			return err
		}
		if !won {
			return ErrInvalidOrExpiredToken
		}
		return nil
	})

	switch {
	case errors.Is(err, errWrongCode):
		s.Metrics.mfaAnswer(string(method), resultInvalidCode)
		return domain.MFAChallenge{}, domain.User{}, s.recordFailure(ctx, l, ch)
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return domain.MFAChallenge{}, domain.User{}, ErrInvalidOrExpiredToken
	case err != nil:
		span.RecordError(err)
		return domain.MFAChallenge{}, domain.User{}, oops.Code("MFA_REDEEM_FAILED").With("challenge_id", ch.ID).Wrap(err)
	}

	s.Metrics.mfaAnswer(string(method), resultSuccess)
	l.Info("mfa challenge verified", slog.String("method", string(method)))
	return ch, u, nil
}

// consumeCode checks code and, for single use codes, uses it up.
func (s *MFAService) consumeCode(ctx context.Context, tx store.Tx, u domain.User, ch domain.MFAChallenge, method domain.MFAKind, code string, now time.Time) (bool, error) {
	switch method {
	case domain.MFAKindTOTP:
		m, ok := u.MFA.(domain.TOTPMethod)
		if !ok {
			return false, nil
		}
		return consumeTOTP(ctx, tx, u.ID, code, m.Secret, now)

	case domain.MFAKindRecovery:
		return tx.BackupCodes().ConsumeBackupCode(ctx, u.ID, cryptox.FingerprintToken(code))

	case domain.MFAKindEmail:
		sent, err := tx.EmailOTPs().GetLatestEmailOTP(ctx, ch.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if !now.Before(sent.ExpiresAt) || !cryptox.EqualFingerprint(sent.CodeHash, cryptox.FingerprintToken(code)) {
			return false, nil
		}
		return tx.EmailOTPs().MarkEmailOTPUsed(ctx, sent.ID, now)

	default:
		return false, nil
	}
}

// recordFailure counts a wrong answer and destroys the challenge once it is
// out of attempts.
func (s *MFAService) recordFailure(ctx context.Context, l *slog.Logger, ch domain.MFAChallenge) error {
	updated, err := s.Store.MFAChallenges().IncrementAttempts(ctx, ch.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return oops.Code("MFA_ATTEMPT_FAILED").With("challenge_id", ch.ID).Wrap(err)
	}

	if updated.Attempts >= MaxMFAAttempts {
		if _, err := s.Store.MFAChallenges().ConsumeChallenge(ctx, ch.ID); err != nil {
			return oops.Code("MFA_ATTEMPT_FAILED").With("challenge_id", ch.ID).Wrap(err)
		}
		l.Warn("mfa challenge destroyed after too many wrong codes", slog.Int("attempts", updated.Attempts))
		return ErrInvalidCode
	}

	l.Info("wrong mfa code", slog.Int("attempts", updated.Attempts))
	return ErrInvalidCode
}
