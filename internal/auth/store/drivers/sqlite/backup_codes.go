package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite/gen"
)

type backupCodesRepo struct {
	q *gen.Queries
}

func (r *backupCodesRepo) CreateBackupCodes(ctx context.Context, userID string, codeHashes []string) error {
	now := time.Now().UTC()
	for _, h := range codeHashes {
		if err := r.q.CreateBackupCode(ctx, gen.CreateBackupCodeParams{
			UserID:    userID,
			CodeHash:  h,
			CreatedAt: now,
		}); err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *backupCodesRepo) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	n, err := r.q.DeleteBackupCode(ctx, gen.DeleteBackupCodeParams{
		UserID:   userID,
		CodeHash: codeHash,
	})
	return n == 1, err
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, userID string) error {
	return r.q.DeleteAllBackupCodes(ctx, userID)
}

func (r *backupCodesRepo) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	count, err := r.q.CountBackupCodes(ctx, userID)
	return int(count), err
}
