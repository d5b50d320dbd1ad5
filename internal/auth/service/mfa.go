package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/samber/oops"
)

const (
	backupCodeCount = 10                   // Number of backup codes to generate
	backupCodeBytes = cryptox.TokenSize128 // 128-bit entropy for backup codes

	totpPeriod = 30
	totpSkew   = 1
)

// MFAService manages second factor enrolment and the challenges issued
// while signing in.
type MFAService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Mailer Mailer

	// Issuer labels the account in authenticator apps, e.g. "Quill".
	Issuer string

	ChallengeTTL time.Duration
	EmailOTPTTL  time.Duration

	Metrics *Metrics
	Now     func() time.Time
}

// SetupResult is what Setup returns. TOTP is set for a pending TOTP
// enrolment; email enrolment is enabled straight away.
type SetupResult struct {
	Method  domain.MFAKind
	Enabled bool
	TOTP    *domain.TOTPEnrollment
}

func (s *MFAService) user(ctx context.Context, st store.Store, id string) (domain.User, error) {
	u, err := st.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, oops.Code("USER_LOOKUP_FAILED").With("user_id", id).Wrap(err)
	}
	return u, nil
}

// Setup starts enrolling p in a second factor. A TOTP secret is stored as
// pending until VerifySetup sees a code from it; email codes need no
// confirmation and are active immediately.
func (s *MFAService) Setup(ctx context.Context, p domain.Principal, kind domain.MFAKind) (SetupResult, error) {
	ctx, span := tracer.Start(ctx, "MFAService.Setup")
	defer span.End()

	u, err := s.user(ctx, s.Store, p.ID)
	if err != nil {
		return SetupResult{}, err
	}
	if u.MFAActive() {
		return SetupResult{}, ErrMFAAlreadyEnabled
	}

	now := clock(s.Now)
	l := slogx.FromContext(ctx).With(slog.String("user_id", u.ID))

	switch kind {
	case domain.MFAKindTOTP:
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.Issuer,
			AccountName: u.Email,
			Period:      totpPeriod,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			return SetupResult{}, fmt.Errorf("failed to generate TOTP key: %w", err)
		}

		// A repeated setup replaces an unconfirmed secret.
		if err := s.Store.Users().SetMFA(ctx, u.ID, domain.TOTPMethod{Secret: key.Secret()}, nil, now); err != nil {
			return SetupResult{}, oops.Code("MFA_SETUP_FAILED").With("user_id", u.ID).Wrap(err)
		}
		l.Info("totp enrolment started")

		return SetupResult{
			Method: domain.MFAKindTOTP,
			TOTP: &domain.TOTPEnrollment{
				Secret:  key.Secret(),
				URL:     key.URL(),
				Issuer:  s.Issuer,
				Account: u.Email,
			},
		}, nil

	case domain.MFAKindEmail:
		if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().SetMFA(ctx, u.ID, domain.EmailMethod{}, &now, now); err != nil {
				return err
			}
			return tx.BackupCodes().DeleteAllBackupCodes(ctx, u.ID)
		}); err != nil {
			return SetupResult{}, oops.Code("MFA_SETUP_FAILED").With("user_id", u.ID).Wrap(err)
		}
		l.Info("email mfa enabled")

		return SetupResult{Method: domain.MFAKindEmail, Enabled: true}, nil

	default:
		return SetupResult{}, withReason(ErrInvalidRequest, "method must be totp or email")
	}
}

// VerifySetup confirms a pending TOTP enrolment with a first code and
// returns freshly generated backup codes. They are shown once; only their
// fingerprints are kept.
func (s *MFAService) VerifySetup(ctx context.Context, p domain.Principal, code string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "MFAService.VerifySetup")
	defer span.End()

	u, err := s.user(ctx, s.Store, p.ID)
	if err != nil {
		return nil, err
	}
	if u.MFAActive() {
		return nil, ErrMFAAlreadyEnabled
	}
	method, ok := u.MFA.(domain.TOTPMethod)
	if !ok {
		return nil, ErrMFANotEnabled
	}

	now := clock(s.Now)
	if _, ok := matchTOTP(code, method.Secret, now); !ok {
		s.Metrics.mfaAnswer(string(domain.MFAKindTOTP), resultInvalidCode)
		return nil, ErrInvalidCode
	}

	backupCodes := make([]string, backupCodeCount)
	hashes := make([]string, backupCodeCount)
	for i := range backupCodeCount {
		code, err := cryptox.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		backupCodes[i] = code
		hashes[i] = cryptox.FingerprintToken(code)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		fresh, err := consumeTOTP(ctx, tx, u.ID, code, method.Secret, now)
		if err != nil {
			return err
		}
		if !fresh {
			return errWrongCode
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, u.ID); err != nil {
			return err
		}
		if err := tx.BackupCodes().CreateBackupCodes(ctx, u.ID, hashes); err != nil {
			return err
		}
		return tx.Users().SetMFA(ctx, u.ID, method, &now, now)
	})
	if errors.Is(err, errWrongCode) {
		s.Metrics.mfaAnswer(string(domain.MFAKindTOTP), resultInvalidCode)
		return nil, ErrInvalidCode
	}
	if err != nil {
		span.RecordError(err)
		return nil, oops.Code("MFA_ENABLE_FAILED").With("user_id", u.ID).Wrap(err)
	}

	slogx.FromContext(ctx).Info("totp enabled", slog.String("user_id", u.ID))
	return backupCodes, nil
}

// Disable removes the second factor after re-checking the password.
func (s *MFAService) Disable(ctx context.Context, p domain.Principal, password string) error {
	ctx, span := tracer.Start(ctx, "MFAService.Disable")
	defer span.End()

	u, err := s.user(ctx, s.Store, p.ID)
	if err != nil {
		return err
	}
	if u.MFA == nil {
		return ErrMFANotEnabled
	}
	if err := s.Hasher.Verify(password, u.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	now := clock(s.Now)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().ClearMFA(ctx, u.ID, now); err != nil {
			return err
		}
		return tx.BackupCodes().DeleteAllBackupCodes(ctx, u.ID)
	})
	if err != nil {
		span.RecordError(err)
		return oops.Code("MFA_DISABLE_FAILED").With("user_id", u.ID).Wrap(err)
	}

	slogx.FromContext(ctx).Info("mfa disabled", slog.String("user_id", u.ID))
	return nil
}

// Status reports p's MFA configuration.
func (s *MFAService) Status(ctx context.Context, p domain.Principal) (domain.MFAStatus, error) {
	u, err := s.user(ctx, s.Store, p.ID)
	if err != nil {
		return domain.MFAStatus{}, err
	}

	st := domain.MFAStatus{Enabled: u.MFAActive()}
	if u.MFA != nil {
		st.Method = u.MFA.Kind()
		st.PendingSetup = !u.MFAActive()
	}

	if _, ok := u.MFA.(domain.TOTPMethod); ok && st.Enabled {
		n, err := s.Store.BackupCodes().CountBackupCodes(ctx, u.ID)
		if err != nil {
			return domain.MFAStatus{}, oops.Code("MFA_STATUS_FAILED").With("user_id", u.ID).Wrap(err)
		}
		st.BackupCodesRemaining = n
	}
	return st, nil
}

// matchTOTP returns the time step code was generated for, looking up to
// totpSkew steps either side of now.
func matchTOTP(code, secret string, now time.Time) (int64, bool) {
	code = strings.TrimSpace(code)
	if len(code) != otp.DigitsSix.Length() {
		return 0, false
	}

	opts := totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
	counter := now.Unix() / totpPeriod
	for delta := int64(-totpSkew); delta <= totpSkew; delta++ {
		step := counter + delta
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*totpPeriod, 0), opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

// consumeTOTP accepts code once per time step: a step at or before the last
// one accepted for the user is refused.
func consumeTOTP(ctx context.Context, tx store.Tx, userID, code, secret string, now time.Time) (bool, error) {
	step, ok := matchTOTP(code, secret, now)
	if !ok {
		return false, nil
	}
	return tx.Users().ClaimTOTPStep(ctx, userID, step)
}
