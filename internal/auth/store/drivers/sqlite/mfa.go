package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite/gen"
)

type mfaChallengesRepo struct {
	q *gen.Queries
}

func (r *mfaChallengesRepo) CreateChallenge(ctx context.Context, c domain.MFAChallenge) error {
	err := r.q.CreateMFAChallenge(ctx, gen.CreateMFAChallengeParams{
		ID:           c.ID,
		TokenHash:    c.TokenHash,
		UserID:       c.UserID,
		Method:       string(c.Method),
		RememberMe:   c.RememberMe,
		IssueRefresh: c.IssueRefresh,
		ExpiresAt:    utc(c.ExpiresAt),
		CreatedAt:    utc(c.CreatedAt),
	})
	return mapConstraint(err)
}

func (r *mfaChallengesRepo) GetChallengeByHash(ctx context.Context, hash string) (domain.MFAChallenge, error) {
	row, err := r.q.GetMFAChallengeByHash(ctx, hash)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return mapMFAChallenge(row), nil
}

func (r *mfaChallengesRepo) IncrementAttempts(ctx context.Context, id string) (domain.MFAChallenge, error) {
	row, err := r.q.IncrementMFAChallengeAttempts(ctx, id)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return mapMFAChallenge(row), nil
}

func (r *mfaChallengesRepo) ConsumeChallenge(ctx context.Context, id string) (bool, error) {
	n, err := r.q.DeleteMFAChallenge(ctx, id)
	return n == 1, err
}

func (r *mfaChallengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredMFAChallenges(ctx, utc(now))
}

type emailOTPsRepo struct {
	q *gen.Queries
}

func (r *emailOTPsRepo) CreateEmailOTP(ctx context.Context, o domain.EmailOTP) error {
	return r.q.CreateEmailOTP(ctx, gen.CreateEmailOTPParams{
		ID:          o.ID,
		ChallengeID: o.ChallengeID,
		UserID:      o.UserID,
		CodeHash:    o.CodeHash,
		ExpiresAt:   utc(o.ExpiresAt),
		CreatedAt:   utc(o.CreatedAt),
	})
}

func (r *emailOTPsRepo) GetLatestEmailOTP(ctx context.Context, challengeID string) (domain.EmailOTP, error) {
	row, err := r.q.GetLatestEmailOTP(ctx, challengeID)
	if err != nil {
		return domain.EmailOTP{}, mapNotFound(err)
	}
	return mapEmailOTP(row), nil
}

func (r *emailOTPsRepo) MarkEmailOTPUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	n, err := r.q.MarkEmailOTPUsed(ctx, gen.MarkEmailOTPUsedParams{
		UsedAt: nullTime(now),
		ID:     id,
	})
	return n == 1, err
}

func (r *emailOTPsRepo) InvalidateForChallenge(ctx context.Context, challengeID string, now time.Time) error {
	return r.q.InvalidateEmailOTPs(ctx, gen.InvalidateEmailOTPsParams{
		UsedAt:      nullTime(now),
		ChallengeID: challengeID,
	})
}

func (r *emailOTPsRepo) DeleteExpiredEmailOTPs(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredEmailOTPs(ctx, utc(now))
}
