package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/metrics"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

// RevokeFamily revokes every active refresh token of the family
func (s *AuthService) RevokeFamily(ctx context.Context, family string) error {
	revoked, err := s.storage.Refresh().RevokeFamily(ctx, family, s.now().Truncate(time.Second))
	if err != nil {
		return fmt.Errorf("can't revoke family. Err: %w", err)
	}

	s.metrics.Revoked(metrics.ScopeFamily, revoked)
	return nil
}

// RevokeAllForUser deletes every session and revokes refresh tokens in every family of the user
func (s *AuthService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.storage.InTx(ctx, func(st repository.Storage) error {
		return s.RevokeAllForUserTx(ctx, st, userID)
	})
}

// RevokeAllForUserTx does the same as RevokeAllForUser within the caller's transaction
// Used on password change: the new password and the revocation are committed together
func (s *AuthService) RevokeAllForUserTx(ctx context.Context, tx repository.Storage, userID uuid.UUID) error {
	now := s.now().Truncate(time.Second)

	if _, err := tx.Session().DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("can't revoke user sessions. Err: %w", err)
	}

	revoked, err := tx.Refresh().RevokeByUser(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("can't revoke user sessions. Err: %w", err)
	}

	s.metrics.Revoked(metrics.ScopeUser, revoked)
	s.logger.Info("all sessions revoked", "user_id", userID, "revoked_tokens", revoked)

	return nil
}

// Logout ends the session the access token belongs to
// Every session of the user is deleted and the family of this session is revoked
// Expired access token is fine as long as its session exists; unknown token is a no-op
func (s *AuthService) Logout(ctx context.Context, access string) error {
	if access == "" {
		return nil
	}

	now := s.now().Truncate(time.Second)
	var revoked int64

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		session, err := st.Session().GetByAccess(ctx, access)
		if err != nil {
			return err
		}

		revoked, err = st.Refresh().RevokeFamily(ctx, session.Family, now)
		if err != nil {
			return err
		}

		_, err = st.Session().DeleteByUser(ctx, session.UserID)
		return err
	})

	switch {
	case err == nil:
		s.metrics.Revoked(metrics.ScopeFamily, revoked)
		return nil
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return nil
	default:
		return fmt.Errorf("logout failed. Err: %w", err)
	}
}
