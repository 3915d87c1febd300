package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

const subscriptionColumns = `id, email, name, token, status`

func scanSubscription(row *sql.Row, op string) (*mailbus.Subscription, error) {
	var s mailbus.Subscription
	if err := row.Scan(&s.ID, &s.Email, &s.Name, &s.Token, &s.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &mailbus.Error{Code: mailbus.ErrNotFound, Message: "Subscription not found.", Op: op}
		}
		return nil, &mailbus.Error{Op: op, Err: err}
	}
	return &s, nil
}

// FindByEmail finds a subscription by email
func (ss *subscriptionService) FindByEmail(ctx context.Context, email string) (*mailbus.Subscription, error) {
	row := ss.db.sqlDB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE email = ?`, email)
	return scanSubscription(row, "sqlite.FindByEmail")
}

// FindByToken finds a subscription by its confirmation token
func (ss *subscriptionService) FindByToken(ctx context.Context, token string) (*mailbus.Subscription, error) {
	row := ss.db.sqlDB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE token = ?`, token)
	return scanSubscription(row, "sqlite.FindByToken")
}

// Insert inserts a new subscription
func (ss *subscriptionService) Insert(ctx context.Context, s *mailbus.Subscription) error {
	_, err := ss.db.sqlDB.ExecContext(ctx,
		`INSERT INTO subscriptions (id, email, name, token, status, subscribed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Email, s.Name, s.Token, s.Status, s.SubscribedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"))
	if err != nil {
		if isUniqueViolation(err) {
			return &mailbus.Error{Code: mailbus.ErrConflict, Message: "Email is already subscribed.", Op: "sqlite.Insert", Err: err}
		}
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Update moves a subscription back to pending with a new token
func (ss *subscriptionService) Update(ctx context.Context, email, token string) error {
	return ss.exec(ctx, "sqlite.Update",
		`UPDATE subscriptions SET status = ?, token = ? WHERE email = ?`,
		mailbus.StatusPending, token, email)
}

// Confirm marks the subscription holding token as confirmed
func (ss *subscriptionService) Confirm(ctx context.Context, token string) error {
	return ss.exec(ctx, "sqlite.Confirm",
		`UPDATE subscriptions SET status = ? WHERE token = ?`,
		mailbus.StatusConfirmed, token)
}

// Unsubscribe unsubscribes email from the newsletter
func (ss *subscriptionService) Unsubscribe(ctx context.Context, email string) error {
	return ss.exec(ctx, "sqlite.Unsubscribe",
		`UPDATE subscriptions SET status = ? WHERE email = ?`,
		mailbus.StatusUnsubscribed, email)
}

// FindConfirmedEmails returns the addresses of confirmed subscribers in subscription order
func (ss *subscriptionService) FindConfirmedEmails(ctx context.Context) ([]string, error) {
	rows, err := ss.db.sqlDB.QueryContext(ctx,
		`SELECT email FROM subscriptions WHERE status = ? ORDER BY subscribed_at, rowid`,
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

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
