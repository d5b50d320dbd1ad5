package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite/gen"
)

type passwordResetsRepo struct {
	q *gen.Queries
}

func (r *passwordResetsRepo) CreatePasswordReset(ctx context.Context, pr domain.PasswordReset) error {
	err := r.q.CreatePasswordReset(ctx, gen.CreatePasswordResetParams{
		ID:        pr.ID,
		UserID:    pr.UserID,
		TokenHash: pr.TokenHash,
		ExpiresAt: utc(pr.ExpiresAt),
		CreatedAt: utc(pr.CreatedAt),
	})
	return mapConstraint(err)
}

func (r *passwordResetsRepo) GetPasswordResetByHash(ctx context.Context, hash string) (domain.PasswordReset, error) {
	row, err := r.q.GetPasswordResetByHash(ctx, hash)
	if err != nil {
		return domain.PasswordReset{}, mapNotFound(err)
	}
	return mapPasswordReset(row), nil
}

func (r *passwordResetsRepo) MarkPasswordResetUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	n, err := r.q.MarkPasswordResetUsed(ctx, gen.MarkPasswordResetUsedParams{
		UsedAt: nullTime(now),
		ID:     id,
	})
	return n == 1, err
}

func (r *passwordResetsRepo) DeleteUnusedPasswordResets(ctx context.Context, userID string) error {
	return r.q.DeleteUnusedPasswordResets(ctx, userID)
}

func (r *passwordResetsRepo) DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredPasswordResets(ctx, utc(now))
}
