package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
)

type SessionRepo struct {
	DB DBTX
}

const saveSession = `-- name: SaveSession
INSERT INTO sessions (family, user_id, access_token, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (family) DO UPDATE
SET access_token = EXCLUDED.access_token,
    expires_at = EXCLUDED.expires_at
`

func (r *SessionRepo) Save(ctx context.Context, s models.Session) error {
	_, err := r.DB.Exec(ctx, saveSession, s.Family, s.UserID, s.AccessToken, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return dbError(err)
	}
	return nil
}

const getSessionByAccess = `-- name: GetSessionByAccess
SELECT family, user_id, access_token, created_at, expires_at
FROM sessions
WHERE access_token = $1
`

func (r *SessionRepo) GetByAccess(ctx context.Context, accessToken string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getSessionByAccess, accessToken)
	session, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Session, error) {
		var s models.Session
		err := row.Scan(&s.Family, &s.UserID, &s.AccessToken, &s.CreatedAt, &s.ExpiresAt)
		return s, err
	})

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, apperrors.ErrSessionNotFound
	default:
		return session, dbError(err)
	}
}

const deleteSessionsByUser = `-- name: DeleteSessionsByUser
DELETE FROM sessions
WHERE user_id = $1
`

func (r *SessionRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteSessionsByUser, userID)
	if err != nil {
		return 0, dbError(err)
	}
	return tag.RowsAffected(), nil
}

const deleteExpiredSessions = `-- name: DeleteExpiredSessions
DELETE FROM sessions
WHERE expires_at < $1
`

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredSessions, before)
	if err != nil {
		return 0, dbError(err)
	}
	return tag.RowsAffected(), nil
}
