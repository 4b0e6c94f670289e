package models

import (
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // sha256 of the secret, the secret itself is never stored
	Family    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time // nil if token is the active one of its family
}

func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Cookies issued on login or rotation
// Access is a signed token that expires sooner than the session it belongs to
type SessionCookies struct {
	Access         IssuedToken
	SessionExpires time.Time
	Refresh        IssuedToken
}
