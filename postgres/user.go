package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quantonganh/mailbus"
)

type userService struct {
	db *DB
}

// NewUserService returns a mailbus.UserService backed by db
func NewUserService(db *DB) mailbus.UserService {
	return &userService{
		db: db,
	}
}

// FindByUsername finds a publisher account by username
func (us *userService) FindByUsername(ctx context.Context, username string) (*mailbus.User, error) {
	var u mailbus.User
	err := us.db.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, username, password_hash FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &mailbus.Error{Code: mailbus.ErrNotFound, Message: "User not found.", Op: "postgres.FindByUsername"}
		}
		return nil, fmt.Errorf("failed to perform a query to validate auth credentials: %w", err)
	}
	return &u, nil
}

// Insert stores a new publisher account
func (us *userService) Insert(ctx context.Context, u *mailbus.User) error {
	_, err := us.db.sqlDB.ExecContext(ctx,
		`INSERT INTO users (user_id, username, password_hash) VALUES ($1, $2, $3)`,
		u.ID, u.Username, u.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return &mailbus.Error{Code: mailbus.ErrConflict, Message: "Username is already taken.", Op: "postgres.Insert", Err: err}
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}
