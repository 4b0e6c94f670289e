package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/metrics"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

// Refresh exchanges the refresh secret for a new pair in the same family
//
// Errors:
//   - apperrors.ErrRefreshTokenNotFound: secret is unknown
//   - apperrors.ErrRefreshTokenExpired: secret is known but expired
//   - apperrors.ErrRefreshTokenReused: secret was revoked already; the whole family is revoked
//     and every session of the user is deleted
//   - apperrors.ErrStoreUnavailable: nothing was changed, may be retried
//
// A concurrent rotation of the same secret that lost the guarded revoke is reuse as well.
func (s *AuthService) Refresh(ctx context.Context, secret string) (models.SessionCookies, error) {
	if secret == "" {
		s.metrics.Refresh(metrics.RefreshInvalid)
		return models.SessionCookies{}, apperrors.ErrRefreshTokenNotFound
	}

	hash := s.tokens.HashRefresh(secret)
	now := s.now().Truncate(time.Second)

	var cookies models.SessionCookies
	var reused *models.RefreshToken

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		token, err := st.Refresh().Get(ctx, hash)
		if err != nil {
			return err
		}

		if token.IsRevoked() {
			reused = &token
			return nil
		}

		if !token.ExpiresAt.After(now) {
			return apperrors.ErrRefreshTokenExpired
		}

		err = st.Refresh().Revoke(ctx, hash, now)
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenRevoked):
			// Another request rotated the token after we read it
			reused = &token
			return nil
		case err != nil:
			return err
		}

		user, err := st.User().GetUserByID(ctx, token.UserID)
		if err != nil {
			return fmt.Errorf("can't resolve user role. Err: %w", err)
		}

		cookies, err = s.issue(ctx, st, user, token.Family, now)
		return err
	})

	if reused != nil {
		s.metrics.Refresh(metrics.RefreshReused)
		return models.SessionCookies{}, s.revokeReused(ctx, *reused)
	}

	switch {
	case err == nil:
		s.metrics.Refresh(metrics.RefreshOK)
		return cookies, nil
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		s.metrics.Refresh(metrics.RefreshInvalid)
	case errors.Is(err, apperrors.ErrRefreshTokenExpired):
		s.metrics.Refresh(metrics.RefreshExpired)
	default:
		s.metrics.Refresh(metrics.RefreshError)
		s.logger.Error("refresh token rotation failed", "error", err)
	}

	return models.SessionCookies{}, fmt.Errorf("refresh failed. Err: %w", err)
}

// Theft response: revoke every token of the family and drop every session of the user
// Returned error always wraps apperrors.ErrRefreshTokenReused
func (s *AuthService) revokeReused(ctx context.Context, token models.RefreshToken) error {
	s.metrics.ReuseDetected()
	s.logger.Warn("refresh token reuse detected, revoking family",
		"user_id", token.UserID,
		"family", token.Family,
	)

	now := s.now().Truncate(time.Second)
	var revoked, deleted int64

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error

		revoked, err = st.Refresh().RevokeFamily(ctx, token.Family, now)
		if err != nil {
			return err
		}

		deleted, err = st.Session().DeleteByUser(ctx, token.UserID)
		return err
	})
	if err != nil {
		// Family may still be alive: the next presentation of the same secret repeats the response
		s.logger.Error("family revocation after reuse failed", "user_id", token.UserID, "family", token.Family, "error", err)
		return fmt.Errorf("%w: family revocation failed. Err: %w", apperrors.ErrRefreshTokenReused, err)
	}

	s.metrics.Revoked(metrics.ScopeFamily, revoked)
	s.logger.Info("family revoked after reuse",
		"user_id", token.UserID,
		"family", token.Family,
		"revoked_tokens", revoked,
		"deleted_sessions", deleted,
	)

	return apperrors.ErrRefreshTokenReused
}
