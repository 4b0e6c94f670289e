package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultRole = "user"

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	HashedPassword string
	Role           string
}

// Identity established from a valid access token and a live session
type Identity struct {
	UserID uuid.UUID
	Role   string
}
