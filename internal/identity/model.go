package identity

import (
	"errors"
	"time"
)

var (
	// ErrMissingCredentials rejects an empty username or password.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrUserExists indicates the username is already taken.
	ErrUserExists = errors.New("username already exists")
	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User represents a registered account holder.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Username string
	Password string
}
