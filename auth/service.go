package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service combines the user store and the token authenticator into
// the register/login flow the HTTP API exposes.
type Service struct {
	users  UserStore
	tokens *Authenticator
}

// NewService creates an auth Service.
func NewService(users UserStore, tokens *Authenticator) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates a new user with a fresh salt and PBKDF2 hash.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and issues a token. An unknown
// username and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (token, userID string, err error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}

	if !verifyPassword(password, user.Salt, user.PasswordHash) {
		return "", "", ErrInvalidCredentials
	}

	token, err = s.tokens.IssueToken(user.ID)
	if err != nil {
		return "", "", err
	}
	return token, user.ID, nil
}

// VerifyToken implements TokenVerifier.
func (s *Service) VerifyToken(token string) (string, error) {
	return s.tokens.VerifyToken(token)
}
