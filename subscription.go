package mailbus

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// SubscriptionService is the interface that wraps methods related to subscriptions
type SubscriptionService interface {
	FindByEmail(ctx context.Context, email string) (*Subscription, error)
	FindByToken(ctx context.Context, token string) (*Subscription, error)
	Insert(ctx context.Context, s *Subscription) error
	// Update moves an existing subscription back to pending with a new token.
	Update(ctx context.Context, email, token string) error
	Confirm(ctx context.Context, token string) error
	Unsubscribe(ctx context.Context, email string) error
	// FindConfirmedEmails returns the stored addresses of confirmed subscribers, oldest first.
	FindConfirmedEmails(ctx context.Context) ([]string, error)
}

// Subscription represents a subscriber
type Subscription struct {
	ID           string    `storm:"id"`
	Email        string    `storm:"unique"`
	Name         string
	Token        string    `storm:"index"`
	Status       string    `storm:"index"`
	SubscribedAt time.Time `storm:"index"`
}

// Subscription status
const (
	StatusPending      = "pending_confirmation"
	StatusConfirmed    = "confirmed"
	StatusUnsubscribed = "unsubscribed"
)

// NewSubscription returns a pending subscription
func NewSubscription(id string, email SubscriberEmail, name SubscriberName, token string) *Subscription {
	return &Subscription{
		ID:           id,
		Email:        email.String(),
		Name:         name.String(),
		Token:        token,
		Status:       StatusPending,
		SubscribedAt: time.Now().UTC(),
	}
}

// SubscriptionNotifier sends the emails of the subscription lifecycle
type SubscriptionNotifier interface {
	SendConfirmation(ctx context.Context, to, token string) error
	SendThankYou(ctx context.Context, to string) error
}

// SubscriptionRequest is the body of a subscription request
type SubscriptionRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SubscriptionResponse carries a message for the subscriber
type SubscriptionResponse struct {
	Message string `json:"message"`
}

var validate = validator.New()

// SubscriberEmail is an email address that passed validation.
type SubscriberEmail struct {
	addr string
}

// ParseSubscriberEmail validates s as an email address.
func ParseSubscriberEmail(s string) (SubscriberEmail, error) {
	if err := validate.Var(s, "required,email"); err != nil {
		return SubscriberEmail{}, &Error{
			Code:    ErrInvalid,
			Message: s + " is not a valid subscriber email.",
			Op:      "mailbus.ParseSubscriberEmail",
			Err:     err,
		}
	}
	return SubscriberEmail{addr: s}, nil
}

func (e SubscriberEmail) String() string {
	return e.addr
}

// SubscriberName is a display name that passed validation.
type SubscriberName struct {
	name string
}

const forbiddenNameChars = `/()"<>\{}`

// ParseSubscriberName rejects blank names, names longer than 256 characters
// and names containing any of /()"<>\{}.
func ParseSubscriberName(s string) (SubscriberName, error) {
	switch {
	case strings.TrimSpace(s) == "":
		return SubscriberName{}, Errorf(ErrInvalid, "Subscriber name must not be empty.")
	case utf8.RuneCountInString(s) > 256:
		return SubscriberName{}, Errorf(ErrInvalid, "Subscriber name is too long.")
	case strings.ContainsAny(s, forbiddenNameChars):
		return SubscriberName{}, Errorf(ErrInvalid, "%s is not a valid subscriber name.", s)
	}
	return SubscriberName{name: s}, nil
}

func (n SubscriberName) String() string {
	return n.name
}

// ConfirmedSubscriber is a recipient of a newsletter issue
type ConfirmedSubscriber struct {
	Email SubscriberEmail
}
