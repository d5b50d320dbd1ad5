package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite/gen"
)

type refreshTokensRepo struct {
	q *gen.Queries
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	err := r.q.CreateRefreshToken(ctx, gen.CreateRefreshTokenParams{
		ID:         t.ID,
		UserID:     t.UserID,
		SessionID:  t.SessionID,
		TokenHash:  t.TokenHash,
		Amr:        strings.Join(t.AMR, " "),
		RememberMe: t.RememberMe,
		UserAgent:  t.UserAgent,
		IpAddress:  t.IPAddress,
		ExpiresAt:  utc(t.ExpiresAt),
		CreatedAt:  utc(t.CreatedAt),
	})
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row, err := r.q.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return mapRefreshToken(row), nil
}

func (r *refreshTokensRepo) ClaimRefreshToken(ctx context.Context, hash string, now time.Time) (domain.RefreshToken, error) {
	row, err := r.q.ClaimRefreshToken(ctx, gen.ClaimRefreshTokenParams{
		RevokedAt: nullTime(now),
		TokenHash: hash,
	})
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return mapRefreshToken(row), nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, now time.Time) error {
	return r.q.RevokeRefreshToken(ctx, gen.RevokeRefreshTokenParams{
		RevokedAt: nullTime(now),
		TokenHash: hash,
	})
}

func (r *refreshTokensRepo) RevokeSession(ctx context.Context, userID, sessionID string, now time.Time) (int64, error) {
	return r.q.RevokeSessionRefreshTokens(ctx, gen.RevokeSessionRefreshTokensParams{
		RevokedAt: nullTime(now),
		UserID:    userID,
		SessionID: sessionID,
	})
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error) {
	return r.q.RevokeAllUserRefreshTokens(ctx, gen.RevokeAllUserRefreshTokensParams{
		RevokedAt: nullTime(now),
		UserID:    userID,
	})
}

func (r *refreshTokensRepo) ListActiveRefreshTokens(ctx context.Context, userID string, now time.Time) ([]domain.RefreshToken, error) {
	rows, err := r.q.ListActiveRefreshTokens(ctx, gen.ListActiveRefreshTokensParams{
		UserID:    userID,
		ExpiresAt: utc(now),
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.RefreshToken, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapRefreshToken(row))
	}
	return out, nil
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredRefreshTokens(ctx, utc(now))
}
