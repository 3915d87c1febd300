package bolt

import (
	"context"
	"sort"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/go-errors/errors"

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

func (ss *subscriptionService) findOne(op, field, value string) (*mailbus.Subscription, error) {
	var s mailbus.Subscription
	if err := ss.db.stormDB.One(field, value, &s); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return nil, &mailbus.Error{Code: mailbus.ErrNotFound, Message: "Subscription not found.", Op: op}
		}
		return nil, errors.Errorf("failed to find by %s: %v", field, err)
	}

	return &s, nil
}

// FindByEmail finds a subscription by email
func (ss *subscriptionService) FindByEmail(_ context.Context, email string) (*mailbus.Subscription, error) {
	return ss.findOne("bolt.FindByEmail", "Email", email)
}

// FindByToken finds a subscription by token
func (ss *subscriptionService) FindByToken(_ context.Context, token string) (*mailbus.Subscription, error) {
	return ss.findOne("bolt.FindByToken", "Token", token)
}

// Insert inserts new subscription into stormDB
func (ss *subscriptionService) Insert(_ context.Context, s *mailbus.Subscription) error {
	if err := ss.db.stormDB.Save(s); err != nil {
		if errors.Is(err, storm.ErrAlreadyExists) {
			return &mailbus.Error{Code: mailbus.ErrConflict, Message: "Email is already subscribed.", Op: "bolt.Insert", Err: err}
		}
		return errors.Errorf("failed to save: %v", err)
	}

	return nil
}

// Update moves a subscription back to pending with a new token
func (ss *subscriptionService) Update(ctx context.Context, email, token string) error {
	s, err := ss.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	s.Status = mailbus.StatusPending
	s.Token = token
	return ss.save(s)
}

// Confirm marks the subscription holding token as confirmed
func (ss *subscriptionService) Confirm(ctx context.Context, token string) error {
	s, err := ss.FindByToken(ctx, token)
	if err != nil {
		return err
	}

	s.Status = mailbus.StatusConfirmed
	return ss.save(s)
}

// Unsubscribe unsubscribes email from the newsletter
func (ss *subscriptionService) Unsubscribe(ctx context.Context, email string) error {
	s, err := ss.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	s.Status = mailbus.StatusUnsubscribed
	return ss.save(s)
}

// FindConfirmedEmails returns the addresses of confirmed subscribers in subscription order
func (ss *subscriptionService) FindConfirmedEmails(_ context.Context) ([]string, error) {
	var subscriptions []mailbus.Subscription
	err := ss.db.stormDB.Select(q.Eq("Status", mailbus.StatusConfirmed)).Find(&subscriptions)
	if err != nil && !errors.Is(err, storm.ErrNotFound) {
		return nil, errors.Errorf("failed to find confirmed subscribers: %v", err)
	}
	sort.SliceStable(subscriptions, func(i, j int) bool {
		return subscriptions[i].SubscribedAt.Before(subscriptions[j].SubscribedAt)
	})

	emails := make([]string, 0, len(subscriptions))
	for _, s := range subscriptions {
		emails = append(emails, s.Email)
	}

	return emails, nil
}

func (ss *subscriptionService) save(s *mailbus.Subscription) error {
	if err := ss.db.stormDB.Save(s); err != nil {
		return errors.Errorf("failed to save: %v", err)
	}

	return nil
}
