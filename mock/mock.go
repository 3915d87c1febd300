// Package mock provides testify mocks of the mailbus service interfaces.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/quantonganh/mailbus"
)

// SubscriptionService mocks mailbus.SubscriptionService
type SubscriptionService struct {
	mock.Mock
}

func (m *SubscriptionService) FindByEmail(ctx context.Context, email string) (*mailbus.Subscription, error) {
	args := m.Called(ctx, email)
	s, _ := args.Get(0).(*mailbus.Subscription)
	return s, args.Error(1)
}

func (m *SubscriptionService) FindByToken(ctx context.Context, token string) (*mailbus.Subscription, error) {
	args := m.Called(ctx, token)
	s, _ := args.Get(0).(*mailbus.Subscription)
	return s, args.Error(1)
}

func (m *SubscriptionService) Insert(ctx context.Context, s *mailbus.Subscription) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *SubscriptionService) Update(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

func (m *SubscriptionService) Confirm(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *SubscriptionService) Unsubscribe(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *SubscriptionService) FindConfirmedEmails(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	emails, _ := args.Get(0).([]string)
	return emails, args.Error(1)
}

// UserService mocks mailbus.UserService
type UserService struct {
	mock.Mock
}

func (m *UserService) FindByUsername(ctx context.Context, username string) (*mailbus.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*mailbus.User)
	return u, args.Error(1)
}

func (m *UserService) Insert(ctx context.Context, u *mailbus.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

// EmailSender mocks mailbus.EmailSender
type EmailSender struct {
	mock.Mock
}

func (m *EmailSender) Send(ctx context.Context, msg *mailbus.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// SubscriptionNotifier mocks mailbus.SubscriptionNotifier
type SubscriptionNotifier struct {
	mock.Mock
}

func (m *SubscriptionNotifier) SendConfirmation(ctx context.Context, to, token string) error {
	args := m.Called(ctx, to, token)
	return args.Error(0)
}

func (m *SubscriptionNotifier) SendThankYou(ctx context.Context, to string) error {
	args := m.Called(ctx, to)
	return args.Error(0)
}

// AuthLimiter mocks mailbus.AuthLimiter
type AuthLimiter struct {
	mock.Mock
}

func (m *AuthLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *AuthLimiter) RecordFailure(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *AuthLimiter) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
