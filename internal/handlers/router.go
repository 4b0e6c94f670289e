package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/handlers/middleware"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/metrics"
	"github.com/nkiryanov/authkeeper/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Routes under /api/auth and /metrics
// metricsHandler may be nil, then /metrics is not served
// Every route is registered on one mux with its full pattern, so requests are recorded by it
func NewRouter(
	authService authService,
	userService userService,
	metricsHandler http.Handler,
	httpMetrics *metrics.HTTP,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/register", handleRegister(authService, userService, logger))
	mux.Handle("POST /api/auth/login", handleLogin(authService, userService, logger))
	mux.Handle("POST /api/auth/refresh", handleRefresh(authService, logger))
	mux.Handle("POST /api/auth/logout", handleLogout(authService, logger))

	mux.Handle("GET /api/auth/me", withAuth(handleUserMe()))
	mux.Handle("POST /api/auth/password", withAuth(handleChangePassword(authService, userService, logger)))

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	handler := chain(mux,
		middleware.LoggerMiddleware(logger, httpMetrics),
	)

	return handler
}

type authService interface {
	// Start new session and token family for the user
	Login(ctx context.Context, userID uuid.UUID) (models.SessionCookies, error)

	// Rotate refresh secret
	// Has to return apperrors.ErrRefreshTokenNotFound, ErrRefreshTokenExpired or ErrRefreshTokenReused if it is not accepted
	// Has to return apperrors.ErrStoreUnavailable if nothing could be decided
	Refresh(ctx context.Context, secret string) (models.SessionCookies, error)

	// End session the access token belongs to. Unknown token is not an error
	Logout(ctx context.Context, access string) error

	// Return apperrors.ErrNotAuthenticated if request carries no valid identity
	Authenticate(ctx context.Context, r *http.Request) (models.Identity, error)

	SetCookies(w http.ResponseWriter, cookies models.SessionCookies)
	ClearCookies(w http.ResponseWriter)
	AccessFromRequest(r *http.Request) string
	RefreshFromRequest(r *http.Request) (string, error)
}

type userService interface {
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	CreateUser(ctx context.Context, username string, password string) (models.User, error)

	// Has to return apperrors.ErrInvalidCredentials if username or password is wrong
	Authenticate(ctx context.Context, username string, password string) (models.User, error)

	// Has to return apperrors.ErrInvalidCredentials if old password is wrong
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error
}
