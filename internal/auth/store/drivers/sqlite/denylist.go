package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite/gen"
)

type denylistRepo struct {
	q *gen.Queries
}

func (r *denylistRepo) DenyAccessToken(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	return r.q.DenyAccessToken(ctx, gen.DenyAccessTokenParams{
		Jti:       jti,
		UserID:    userID,
		ExpiresAt: utc(expiresAt),
		CreatedAt: time.Now().UTC(),
	})
}

func (r *denylistRepo) IsAccessTokenDenied(ctx context.Context, jti string) (bool, error) {
	n, err := r.q.IsAccessTokenDenied(ctx, jti)
	return n > 0, err
}

func (r *denylistRepo) DeleteExpiredDeniedTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredDeniedTokens(ctx, utc(now))
}
