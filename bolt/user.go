package bolt

import (
	"context"

	"github.com/asdine/storm/v3"
	"github.com/go-errors/errors"

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
func (us *userService) FindByUsername(_ context.Context, username string) (*mailbus.User, error) {
	var u mailbus.User
	if err := us.db.stormDB.One("Username", username, &u); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return nil, &mailbus.Error{Code: mailbus.ErrNotFound, Message: "User not found.", Op: "bolt.FindByUsername"}
		}
		return nil, errors.Errorf("failed to find by username: %v", err)
	}

	return &u, nil
}

// Insert stores a new publisher account
func (us *userService) Insert(_ context.Context, u *mailbus.User) error {
	if err := us.db.stormDB.Save(u); err != nil {
		if errors.Is(err, storm.ErrAlreadyExists) {
			return &mailbus.Error{Code: mailbus.ErrConflict, Message: "Username is already taken.", Op: "bolt.Insert", Err: err}
		}
		return errors.Errorf("failed to save: %v", err)
	}

	return nil
}
