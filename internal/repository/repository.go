package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/models"
)

// Any failure that is not a known row state has to wrap apperrors.ErrStoreUnavailable
type Storage interface {
	User() UserRepo
	Session() SessionRepo
	Refresh() RefreshTokenRepo

	// Run fn in one transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string, role string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// If user not found must return apperrors.ErrUserNotFound
	SetPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
}

// Session repository interface
type SessionRepo interface {
	// Create or overwrite the session of the family
	Save(ctx context.Context, session models.Session) error

	// Return the session by its access token, even if it is expired
	// If not found must return apperrors.ErrSessionNotFound
	GetByAccess(ctx context.Context, accessToken string) (models.Session, error)

	// Delete every session of the user and return how many were deleted
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete sessions expired before the time and return how many were deleted
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Create token in repository
	Save(ctx context.Context, token models.RefreshToken) error

	// Return the token by hash, even if it is expired or revoked
	// If not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenHash string) (models.RefreshToken, error)

	// Guarded revoke: set revokedAt only if the token is not revoked yet
	// If the token is revoked already must return apperrors.ErrRefreshTokenRevoked and keep the original revokedAt
	// If not found must return apperrors.ErrRefreshTokenNotFound
	Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) error

	// Revoke every token of the family that is not revoked yet. Return how many were revoked
	RevokeFamily(ctx context.Context, family string, revokedAt time.Time) (int64, error)

	// Revoke every token of the user that is not revoked yet. Return how many were revoked
	RevokeByUser(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error)

	// Delete every token of families whose all tokens expired before the time
	// Partially expired family is kept whole so its old tokens still trigger reuse detection
	DeleteExpiredFamilies(ctx context.Context, before time.Time) (int64, error)
}
