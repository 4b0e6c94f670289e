package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/authkeeper/internal/logger"
)

func handleUserMe() http.Handler {
	type response struct {
		ID   uuid.UUID `json:"id"`
		Role string    `json:"role"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}
		render.JSON(w, response{ID: identity.UserID, Role: identity.Role})
	})
}

// Every session of the user ends, the caller included
func handleChangePassword(as authService, us userService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"old_password" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = us.ChangePassword(r.Context(), identity.UserID, data.OldPassword, data.NewPassword)
		switch {
		case err == nil:
			as.ClearCookies(w)
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Old password is wrong", http.StatusForbidden)
		default:
			serviceFailure(w, l, "Failed to change password", err)
		}
	})
}
