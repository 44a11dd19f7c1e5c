package identity

import (
	"context"
	"time"
)

// User is the canonical security principal.
type User struct {
	ID       string
	Username string
	Email    string

	CreatedAt time.Time
}

// UserAuth couples a user with its stored credential hash.
// The hash never leaves this package boundary except to the verifier.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a user registration request.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Now      time.Time
}

// Store is the identity persistence boundary.
//
// Lookups by username/email expect pre-normalization to happen here, so
// callers pass the raw identifier as entered by the user.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetUserByID(ctx context.Context, userID string) (User, error)
	GetUserAuthByID(ctx context.Context, userID string) (UserAuth, error)
	GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// UpdatePasswordHash replaces the stored credential hash for a user.
	// Session revocation on password change is the session manager's job,
	// not the store's.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}
