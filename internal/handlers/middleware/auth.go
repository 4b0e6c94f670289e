package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/authkeeper/internal/models"
)

type authService interface {
	// Return apperrors.ErrNotAuthenticated if request carries no valid identity
	Authenticate(ctx context.Context, r *http.Request) (models.Identity, error)
}

func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := as.Authenticate(r.Context(), r)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), identity)))
			case errors.Is(err, apperrors.ErrStoreUnavailable):
				render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
			default:
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			}
		})
	}
}
