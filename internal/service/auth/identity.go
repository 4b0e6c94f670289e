package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
)

// ResolveIdentity returns the identity of the access token owner
//
// Both checks have to pass:
//   - token signature, expiry and type
//   - session with this token exists and is not expired
//
// Invalid or missing token is not an error: it returns ok=false. Error is returned for store failures only.
func (s *AuthService) ResolveIdentity(ctx context.Context, access string) (models.Identity, bool, error) {
	if access == "" {
		return models.Identity{}, false, nil
	}

	identity, err := s.tokens.ParseAccess(access)
	if err != nil {
		s.logger.Debug("access token rejected", "error", err)
		return models.Identity{}, false, nil
	}

	session, err := s.storage.Session().GetByAccess(ctx, access)
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return models.Identity{}, false, nil
	case err != nil:
		return models.Identity{}, false, fmt.Errorf("can't load session. Err: %w", err)
	}

	if session.UserID != identity.UserID {
		s.logger.Error("session does not match access token owner", "family", session.Family)
		return models.Identity{}, false, nil
	}

	if !session.ExpiresAt.After(s.now()) {
		return models.Identity{}, false, nil
	}

	return identity, true, nil
}

// Authenticate request by its access cookie
// Return apperrors.ErrNotAuthenticated if there is no valid identity
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (models.Identity, error) {
	identity, ok, err := s.ResolveIdentity(ctx, s.AccessFromRequest(r))
	switch {
	case err != nil:
		return identity, err
	case !ok:
		return identity, apperrors.ErrNotAuthenticated
	default:
		return identity, nil
	}
}
