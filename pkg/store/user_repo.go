package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUserExists is returned when registering an email already taken.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// User is a registered account holder.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserRepo persists users.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a user repository.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user with a pre-hashed password.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) (User, error) {
	user := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID.String(), user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		var exists int
		if lookupErr := r.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM users WHERE email = ?`, email,
		).Scan(&exists); lookupErr == nil && exists > 0 {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindByEmail looks a user up by email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email))
}

// FindByID looks a user up by id.
func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id.String()))
}

func (r *UserRepo) scanOne(row *sql.Row) (User, error) {
	var (
		user  User
		rawID string
	)
	err := row.Scan(&rawID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	user.ID, err = uuid.Parse(rawID)
	if err != nil {
		return User{}, fmt.Errorf("parse user id: %w", err)
	}
	return user, nil
}
