package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so that a transaction-scoped Store offers the same
// surface as the root one but cannot start a nested transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	MFAChallenges() MFAChallenges
	EmailOTPs() EmailOTPs
	BackupCodes() BackupCodes
	PasswordResets() PasswordResets
	Denylist() Denylist

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when it returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. A taken email gives ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	UpdatePasswordHash(ctx context.Context, userID, hash string, now time.Time) error
	UpdateRole(ctx context.Context, userID string, role domain.Role, now time.Time) error
	SetActive(ctx context.Context, userID string, active bool, now time.Time) error

	// SetMFA stores method with its activation time. A nil enabledAt keeps the
	// method pending.
	SetMFA(ctx context.Context, userID string, method domain.MFAMethod, enabledAt *time.Time, now time.Time) error

	// ClearMFA removes any configured method.
	ClearMFA(ctx context.Context, userID string, now time.Time) error

	// ClaimTOTPStep records step as the user's last accepted TOTP time step.
	// It reports false when step is not newer than the one recorded.
	ClaimTOTPStep(ctx context.Context, userID string, step int64) (bool, error)

	CountUsers(ctx context.Context) (int64, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// ClaimRefreshToken revokes the token in one conditional write and
	// returns the row as it was claimed. A token that is unknown or already
	// revoked gives ErrNotFound, so of two concurrent callers only one wins.
	ClaimRefreshToken(ctx context.Context, hash string, now time.Time) (domain.RefreshToken, error)

	// RevokeRefreshToken revokes by hash. Revoking twice is not an error.
	RevokeRefreshToken(ctx context.Context, hash string, now time.Time) error

	// RevokeSession revokes every live token of one session of userID.
	RevokeSession(ctx context.Context, userID, sessionID string, now time.Time) (int64, error)

	RevokeAllUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error)

	// ListActiveRefreshTokens returns the unrevoked, unexpired tokens of a user,
	// newest first.
	ListActiveRefreshTokens(ctx context.Context, userID string, now time.Time) ([]domain.RefreshToken, error)

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type MFAChallenges interface {
	CreateChallenge(ctx context.Context, c domain.MFAChallenge) error

	GetChallengeByHash(ctx context.Context, hash string) (domain.MFAChallenge, error)

	// IncrementAttempts bumps the failure counter and returns the new row.
	IncrementAttempts(ctx context.Context, id string) (domain.MFAChallenge, error)

	// ConsumeChallenge deletes the challenge and reports whether this call
	// was the one that deleted it.
	ConsumeChallenge(ctx context.Context, id string) (bool, error)

	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type EmailOTPs interface {
	CreateEmailOTP(ctx context.Context, o domain.EmailOTP) error

	// GetLatestEmailOTP returns the newest unused code of a challenge.
	GetLatestEmailOTP(ctx context.Context, challengeID string) (domain.EmailOTP, error)

	// MarkEmailOTPUsed flags the code used once; false if it already was.
	MarkEmailOTPUsed(ctx context.Context, id string, now time.Time) (bool, error)

	// InvalidateForChallenge marks every unused code of a challenge used.
	InvalidateForChallenge(ctx context.Context, challengeID string, now time.Time) error

	DeleteExpiredEmailOTPs(ctx context.Context, now time.Time) (int64, error)
}

type BackupCodes interface {
	CreateBackupCodes(ctx context.Context, userID string, codeHashes []string) error

	// ConsumeBackupCode deletes a matching code; false if there was none.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)

	DeleteAllBackupCodes(ctx context.Context, userID string) error

	CountBackupCodes(ctx context.Context, userID string) (int, error)
}

type PasswordResets interface {
	CreatePasswordReset(ctx context.Context, r domain.PasswordReset) error

	GetPasswordResetByHash(ctx context.Context, hash string) (domain.PasswordReset, error)

	// MarkPasswordResetUsed succeeds once per token.
	MarkPasswordResetUsed(ctx context.Context, id string, now time.Time) (bool, error)

	// DeleteUnusedPasswordResets drops a user's outstanding reset tokens.
	DeleteUnusedPasswordResets(ctx context.Context, userID string) error

	DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error)
}

// Denylist records access tokens revoked before their expiry. It has its
// own interface so it can be served from a different backend than Store.
type Denylist interface {
	DenyAccessToken(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsAccessTokenDenied(ctx context.Context, jti string) (bool, error)
	DeleteExpiredDeniedTokens(ctx context.Context, now time.Time) (int64, error)
}
