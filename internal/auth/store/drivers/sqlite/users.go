package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/store/drivers/sqlite/gen"
)

type usersRepo struct {
	q *gen.Queries
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row, err := r.q.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row, err := r.q.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	err := r.q.CreateUser(ctx, gen.CreateUserParams{
		ID:           u.ID,
		Email:        domain.NormalizeEmail(u.Email),
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Active:       u.Active,
		CreatedAt:    utc(u.CreatedAt),
		UpdatedAt:    utc(u.UpdatedAt),
	})
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string, now time.Time) error {
	return requireRow(r.q.UpdateUserPasswordHash(ctx, gen.UpdateUserPasswordHashParams{
		PasswordHash: hash,
		UpdatedAt:    utc(now),
		ID:           userID,
	}))
}

func (r *usersRepo) UpdateRole(ctx context.Context, userID string, role domain.Role, now time.Time) error {
	return requireRow(r.q.UpdateUserRole(ctx, gen.UpdateUserRoleParams{
		Role:      string(role),
		UpdatedAt: utc(now),
		ID:        userID,
	}))
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool, now time.Time) error {
	return requireRow(r.q.SetUserActive(ctx, gen.SetUserActiveParams{
		Active:    active,
		UpdatedAt: utc(now),
		ID:        userID,
	}))
}

func (r *usersRepo) SetMFA(
	ctx context.Context,
	userID string,
	method domain.MFAMethod,
	enabledAt *time.Time,
	now time.Time,
) error {
	var secret sql.NullString
	switch m := method.(type) {
	case domain.TOTPMethod:
		secret = mapStringNull(m.Secret)
	case domain.EmailMethod:
	case nil:
		return r.ClearMFA(ctx, userID, now)
	}

	return requireRow(r.q.SetUserMFA(ctx, gen.SetUserMFAParams{
		MfaMethod:    mapStringNull(string(method.Kind())),
		MfaSecret:    secret,
		MfaEnabledAt: mapOptionalTime(enabledAt),
		UpdatedAt:    utc(now),
		ID:           userID,
	}))
}

func (r *usersRepo) ClearMFA(ctx context.Context, userID string, now time.Time) error {
	return requireRow(r.q.ClearUserMFA(ctx, gen.ClearUserMFAParams{
		UpdatedAt: utc(now),
		ID:        userID,
	}))
}

func (r *usersRepo) ClaimTOTPStep(ctx context.Context, userID string, step int64) (bool, error) {
	n, err := r.q.ClaimTOTPStep(ctx, gen.ClaimTOTPStepParams{
		UserID:   userID,
		LastStep: step,
	})
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *usersRepo) CountUsers(ctx context.Context) (int64, error) {
	return r.q.CountUsers(ctx)
}
