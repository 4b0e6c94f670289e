package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/logger"
)

type credentials struct {
	Login    string `json:"login" validate:"required,min=2,max=50,username"`
	Password string `json:"password" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func handleRegister(as authService, us userService, l logger.Logger) http.Handler {
	type request struct {
		Login    string `json:"login" validate:"required,min=2,max=50,username"`
		Password string `json:"password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := us.CreateUser(r.Context(), data.Login, data.Password)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
			return
		default:
			l.Error("Failed to create user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		cookies, err := as.Login(r.Context(), user.ID)
		if err != nil {
			serviceFailure(w, l, "Failed to start session", err)
			return
		}

		as.SetCookies(w, cookies)
		render.JSON(w, messageResponse{Message: "User registered successfully"})
	})
}

func handleLogin(as authService, us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[credentials](w, r)
		if err != nil {
			return
		}

		user, err := us.Authenticate(r.Context(), data.Login, data.Password)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid login or password", http.StatusUnauthorized)
			return
		default:
			serviceFailure(w, l, "Failed to authenticate user", err)
			return
		}

		cookies, err := as.Login(r.Context(), user.ID)
		if err != nil {
			serviceFailure(w, l, "Failed to start session", err)
			return
		}

		as.SetCookies(w, cookies)
		render.JSON(w, messageResponse{Message: "User logged in successfully"})
	})
}

// Not found, expired and reused secrets are answered the same way
// Store failure is answered with 503 and cookies are kept: the client may retry with the same secret
func handleRefresh(as authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret, err := as.RefreshFromRequest(r)
		if err != nil {
			as.ClearCookies(w)
			render.ServiceError(w, "Refresh token is invalid", http.StatusUnauthorized)
			return
		}

		cookies, err := as.Refresh(r.Context(), secret)
		switch {
		case err == nil:
			as.SetCookies(w, cookies)
			render.JSON(w, messageResponse{Message: "Tokens refreshed successfully"})
		case errors.Is(err, apperrors.ErrStoreUnavailable):
			l.Error("Refresh failed, store unavailable", "error", err)
			render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound),
			errors.Is(err, apperrors.ErrRefreshTokenExpired),
			errors.Is(err, apperrors.ErrRefreshTokenReused):
			as.ClearCookies(w)
			render.ServiceError(w, "Refresh token is invalid", http.StatusUnauthorized)
		default:
			l.Error("Refresh failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogout(as authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := as.Logout(r.Context(), as.AccessFromRequest(r))
		if err != nil {
			serviceFailure(w, l, "Failed to logout", err)
			return
		}

		as.ClearCookies(w)
		w.WriteHeader(http.StatusNoContent)
	})
}

// Render 503 if store is unavailable and 500 otherwise
func serviceFailure(w http.ResponseWriter, l logger.Logger, msg string, err error) {
	l.Error(msg, "error", err)

	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}
