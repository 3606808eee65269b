package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when an insert or rename collides with an
	// existing username.
	ErrUsernameTaken = errors.New("username taken")
)

// User represents a registered chat account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Online       bool
	CreatedAt    time.Time
	LastSeenAt   *time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with an already hashed password.
	CreateUser(ctx context.Context, username, passwordHash, email string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username (case-insensitive).
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// RenameUser changes the username of an existing user.
	RenameUser(ctx context.Context, id int64, newUsername string) (*User, error)

	// SetOnline records presence for a user.
	SetOnline(ctx context.Context, id int64, online bool) error

	// ResetPresence marks every user offline. Used at startup since presence
	// does not survive a restart.
	ResetPresence(ctx context.Context) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore

	// Close closes the underlying database connection.
	Close() error
}
