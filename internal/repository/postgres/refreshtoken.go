package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, token_hash, user_id, family, created_at, expires_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) error {
	_, err := r.DB.Exec(ctx, saveToken,
		token.ID, token.TokenHash, token.UserID, token.Family, token.CreatedAt, token.ExpiresAt, token.RevokedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("refresh token conflicts with existing one: %w", err)
		}
		return dbError(err)
	}
	return nil
}

const getToken = `-- name: GetRefreshToken
SELECT id, token_hash, user_id, family, created_at, expires_at, revoked_at
FROM refresh_tokens
WHERE token_hash = $1
`

// Get token
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenHash)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrRefreshTokenNotFound
	default:
		return token, dbError(err)
	}
}

const revokeToken = `-- name: RevokeRefreshToken if it is still active
UPDATE refresh_tokens
SET revoked_at = $2
WHERE token_hash = $1 AND revoked_at IS NULL
`

const tokenExists = `-- name: RefreshTokenExists
SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_hash = $1)
`

// Compare-and-swap on revoked_at: only one concurrent caller may win
// Loser gets ErrRefreshTokenRevoked
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) error {
	tag, err := r.DB.Exec(ctx, revokeToken, tokenHash, revokedAt)
	if err != nil {
		return dbError(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	rows, _ := r.DB.Query(ctx, tokenExists, tokenHash)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	switch {
	case err != nil:
		return dbError(err)
	case exists:
		return apperrors.ErrRefreshTokenRevoked
	default:
		return apperrors.ErrRefreshTokenNotFound
	}
}

const revokeFamily = `-- name: RevokeFamily
UPDATE refresh_tokens
SET revoked_at = $2
WHERE family = $1 AND revoked_at IS NULL
`

func (r *RefreshTokenRepo) RevokeFamily(ctx context.Context, family string, revokedAt time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeFamily, family, revokedAt)
	if err != nil {
		return 0, dbError(err)
	}
	return tag.RowsAffected(), nil
}

const revokeByUser = `-- name: RevokeByUser
UPDATE refresh_tokens
SET revoked_at = $2
WHERE user_id = $1 AND revoked_at IS NULL
`

func (r *RefreshTokenRepo) RevokeByUser(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeByUser, userID, revokedAt)
	if err != nil {
		return 0, dbError(err)
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.TokenHash, &t.UserID, &t.Family, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
	return t, err
}

// Whole family goes at once: a token is kept while any token of its family may still be rotated
const deleteExpiredFamilies = `-- name: DeleteExpiredFamilies
DELETE FROM refresh_tokens
WHERE family IN (
    SELECT family
    FROM refresh_tokens
    GROUP BY family
    HAVING max(expires_at) < $1
)
`

func (r *RefreshTokenRepo) DeleteExpiredFamilies(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredFamilies, before)
	if err != nil {
		return 0, dbError(err)
	}
	return tag.RowsAffected(), nil
}
