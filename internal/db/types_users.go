package db

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account (one tenant).
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Workspace    string    `json:"workspace,omitempty"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never serialize to JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
