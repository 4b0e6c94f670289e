package models

import (
	"time"

	"github.com/google/uuid"
)

// Session bound to a login event
// Overwritten on every rotation in the family, deleted on logout or revocation
type Session struct {
	Family      string
	UserID      uuid.UUID
	AccessToken string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}
