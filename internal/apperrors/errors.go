package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Refresh token states visible to callers of the rotation
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")
	ErrRefreshTokenReused   = errors.New("refresh token reuse detected")

	// Returned by the guarded revoke when another writer revoked the token first
	ErrRefreshTokenRevoked = errors.New("refresh token is revoked")

	ErrSessionNotFound  = errors.New("session not found")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Transient infrastructure failure; callers may retry
	ErrStoreUnavailable = errors.New("store unavailable")
)
