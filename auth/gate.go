package auth

import (
	"context"
	"time"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/metrics"
)

// Gate verifies publisher credentials. It implements mailbus.AuthService.
type Gate struct {
	users          mailbus.UserService
	pool           *Pool
	params         *Params
	equalizeTiming bool
	referenceHash  string
}

// Option configures a Gate
type Option func(*Gate)

// WithPool sets the worker pool used for hash comparisons.
func WithPool(p *Pool) Option {
	return func(g *Gate) {
		g.pool = p
	}
}

// WithParams sets the Argon2id parameters of the reference hash.
func WithParams(p *Params) Option {
	return func(g *Gate) {
		g.params = p
	}
}

// WithEqualizeTiming controls whether an unknown username still costs one
// hash comparison, so that response time does not tell whether it exists.
func WithEqualizeTiming(on bool) Option {
	return func(g *Gate) {
		g.equalizeTiming = on
	}
}

// NewGate returns a gate looking users up in users.
func NewGate(users mailbus.UserService, opts ...Option) (*Gate, error) {
	g := &Gate{
		users:          users,
		params:         DefaultParams(),
		equalizeTiming: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.pool == nil {
		g.pool = NewPool(0)
	}

	if g.equalizeTiming {
		hash, err := HashPassword("mailbus reference password", g.params)
		if err != nil {
			return nil, err
		}
		g.referenceHash = hash
	}

	return g, nil
}

// Verify returns the ID of the user the credentials belong to.
// Unknown usernames and wrong passwords produce the same unauthorized error;
// the cause is only visible through errors.Is.
func (g *Gate) Verify(ctx context.Context, creds *mailbus.Credentials) (string, error) {
	const op = "auth.Gate.Verify"

	user, err := g.users.FindByUsername(ctx, creds.Username)
	if err != nil {
		if mailbus.ErrorCode(err) != mailbus.ErrNotFound {
			return "", &mailbus.Error{
				Code:    mailbus.ErrInternal,
				Message: "Failed to perform a query to validate auth credentials.",
				Op:      op,
				Err:     err,
			}
		}
		user = nil
	}

	if user == nil && !g.equalizeTiming {
		return "", unauthorized(op, ErrUnknownUser)
	}

	hash := g.referenceHash
	if user != nil {
		hash = user.PasswordHash
	}

	ok, err := g.compare(ctx, creds.Password, hash)
	if err != nil {
		return "", &mailbus.Error{
			Code:    mailbus.ErrInternal,
			Message: "Failed to verify the password hash.",
			Op:      op,
			Err:     err,
		}
	}

	if user == nil {
		return "", unauthorized(op, ErrUnknownUser)
	}
	if !ok {
		return "", unauthorized(op, ErrWrongPassword)
	}

	return user.ID, nil
}

func (g *Gate) compare(ctx context.Context, password mailbus.Secret, hash string) (bool, error) {
	defer func(start time.Time) {
		metrics.PasswordVerifyDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	var ok bool
	err := g.pool.Do(ctx, func() error {
		var err error
		ok, err = VerifyPassword(password.Reveal(), hash)
		return err
	})
	if err != nil {
		return false, err
	}

	return ok, nil
}
