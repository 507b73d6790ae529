// Package auth provides token issuance and verification plus the user
// accounts behind them.
//
// Tokens are HS256 JWTs whose subject is the user ID. Passwords are
// hashed with PBKDF2-SHA256 and compared in constant time. The edit
// core only consumes the TokenVerifier side of this package.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidToken is returned when a token is missing, expired,
	// malformed, or signed with the wrong key
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidCredentials is returned when username or password is incorrect
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserExists is returned when trying to create a user that already exists
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned when user is not found
	ErrUserNotFound = errors.New("user not found")
)

// TokenVerifier is the interface the transport consumes: it maps an
// opaque token string to a user ID.
type TokenVerifier interface {
	VerifyToken(token string) (userID string, err error)
}

// User is one registered account.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash []byte    `bson:"password_hash" json:"-"`
	Salt         []byte    `bson:"salt" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser stores a new user. Returns ErrUserExists when the
	// username is taken.
	CreateUser(ctx context.Context, user *User) error

	// FindByUsername returns the user with the given username or
	// ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// FindByID returns the user with the given ID or ErrUserNotFound.
	FindByID(ctx context.Context, id string) (*User, error)
}
