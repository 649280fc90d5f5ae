package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/zapdesk/zapdesk/pkg/store"
)

// ErrInvalidCredentials is returned on a failed login. Deliberately the
// same for unknown email and wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service implements registration and login on top of the user store.
type Service struct {
	users *store.UserRepo
	jwt   *JWTService
}

// NewService creates an auth service.
func NewService(users *store.UserRepo, jwt *JWTService) *Service {
	return &Service{users: users, jwt: jwt}
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (store.User, error) {
	if email == "" || password == "" {
		return store.User{}, fmt.Errorf("email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.users.Create(ctx, email, string(hash))
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	return s.jwt.Sign(user.ID, user.Email)
}
