package mailbus

import (
	"context"
	"fmt"
)

// UserService is the interface that wraps methods related to publishers' accounts
type UserService interface {
	// FindByUsername returns an Error with code ErrNotFound when no user matches.
	FindByUsername(ctx context.Context, username string) (*User, error)
	Insert(ctx context.Context, u *User) error
}

// User is an account allowed to publish newsletter issues
type User struct {
	ID           string `storm:"id"`
	Username     string `storm:"unique"`
	PasswordHash string
}

// AuthService verifies credentials and returns the user ID they belong to.
type AuthService interface {
	Verify(ctx context.Context, creds *Credentials) (string, error)
}

// AuthLimiter counts failed authentications per client key
type AuthLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Credentials are supplied by a client with a request
type Credentials struct {
	Username string
	Password Secret
}

const redacted = "[REDACTED]"

// Secret holds a value that must not end up in logs or responses.
type Secret struct {
	value string
}

// NewSecret wraps s
func NewSecret(s string) Secret {
	return Secret{value: s}
}

// Reveal returns the wrapped value
func (s Secret) Reveal() string {
	return s.value
}

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return redacted
}

// Format keeps %v, %+v, %#v, %s and %q from printing the value.
func (s Secret) Format(f fmt.State, verb rune) {
	_, _ = f.Write([]byte(redacted))
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
