package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quantonganh/mailbus"
)

type subscriptionService struct {
	db *DB
}

// NewSubscriptionService returns a mailbus.SubscriptionService backed by db
func NewSubscriptionService(db *DB) mailbus.SubscriptionService {
	return &subscriptionService{
		db: db,
	}
}

func (ss *subscriptionService) findOne(ctx context.Context, op, column, value string) (*mailbus.Subscription, error) {
	var s mailbus.Subscription
	err := ss.db.sqlDB.QueryRowContext(ctx,
		`SELECT id, email, name, token, status, subscribed_at FROM subscriptions WHERE `+column+` = $1`, value).
		Scan(&s.ID, &s.Email, &s.Name, &s.Token, &s.Status, &s.SubscribedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &mailbus.Error{Code: mailbus.ErrNotFound, Message: "Subscription not found.", Op: op}
		}
		return nil, &mailbus.Error{Op: op, Err: err}
	}
	return &s, nil
}

// FindByEmail finds a subscription by email
func (ss *subscriptionService) FindByEmail(ctx context.Context, email string) (*mailbus.Subscription, error) {
	return ss.findOne(ctx, "postgres.FindByEmail", "email", email)
}

// FindByToken finds a subscription by its confirmation token
func (ss *subscriptionService) FindByToken(ctx context.Context, token string) (*mailbus.Subscription, error) {
	return ss.findOne(ctx, "postgres.FindByToken", "token", token)
}

// Insert inserts a new subscription
func (ss *subscriptionService) Insert(ctx context.Context, s *mailbus.Subscription) error {
	_, err := ss.db.sqlDB.ExecContext(ctx,
		`INSERT INTO subscriptions (id, email, name, token, status, subscribed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Email, s.Name, s.Token, s.Status, s.SubscribedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &mailbus.Error{Code: mailbus.ErrConflict, Message: "Email is already subscribed.", Op: "postgres.Insert", Err: err}
		}
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Update moves a subscription back to pending with a new token
func (ss *subscriptionService) Update(ctx context.Context, email, token string) error {
	return ss.exec(ctx, "postgres.Update",
		`UPDATE subscriptions SET status = $1, token = $2 WHERE email = $3`,
		mailbus.StatusPending, token, email)
}

// Confirm marks the subscription holding token as confirmed
func (ss *subscriptionService) Confirm(ctx context.Context, token string) error {
	return ss.exec(ctx, "postgres.Confirm",
		`UPDATE subscriptions SET status = $1 WHERE token = $2`,
		mailbus.StatusConfirmed, token)
}

// Unsubscribe unsubscribes email from the newsletter
func (ss *subscriptionService) Unsubscribe(ctx context.Context, email string) error {
	return ss.exec(ctx, "postgres.Unsubscribe",
		`UPDATE subscriptions SET status = $1 WHERE email = $2`,
		mailbus.StatusUnsubscribed, email)
}

// FindConfirmedEmails returns the addresses of confirmed subscribers in subscription order
func (ss *subscriptionService) FindConfirmedEmails(ctx context.Context) ([]string, error) {
	rows, err := ss.db.sqlDB.QueryContext(ctx,
		`SELECT email FROM subscriptions WHERE status = $1 ORDER BY subscribed_at, id`,
		mailbus.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to find confirmed subscribers: %w", err)
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		emails = append(emails, email)
	}

	return emails, rows.Err()
}

func (ss *subscriptionService) exec(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := ss.db.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return &mailbus.Error{Op: op, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &mailbus.Error{Code: mailbus.ErrNotFound, Message: "Subscription not found.", Op: op}
	}
	return nil
}
