package notify

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/mock"
	"github.com/quantonganh/mailbus/pkg/hash"
)

const secret = "da02e221bc331c9875c5e1299fa8d765"

func newTestNotifier(sender mailbus.EmailSender) *Notifier {
	return NewNotifier(sender, "newsletter@example.com", "Mailbus", "https://news.example.com", secret)
}

func TestNotifier_SendConfirmation(t *testing.T) {
	sender := new(mock.EmailSender)
	var got *mailbus.Message
	sender.On("Send", tmock.Anything, tmock.AnythingOfType("*mailbus.Message")).
		Run(func(args tmock.Arguments) {
			got = args.Get(1).(*mailbus.Message)
		}).
		Return(nil)

	require.NoError(t, newTestNotifier(sender).SendConfirmation(context.Background(), "reader@example.com", "abc123"))

	require.NotNil(t, got)
	assert.Equal(t, "newsletter@example.com", got.From)
	assert.Equal(t, "reader@example.com", got.To)
	assert.Equal(t, "Confirm subscription", got.Subject)
	assert.Contains(t, got.HTML, "https://news.example.com/subscriptions/confirm?subscription_token=abc123")
	assert.Contains(t, got.Text, "Welcome to Mailbus")
	sender.AssertExpectations(t)
}

func TestNotifier_SendThankYou(t *testing.T) {
	sender := new(mock.EmailSender)
	var got *mailbus.Message
	sender.On("Send", tmock.Anything, tmock.Anything).
		Run(func(args tmock.Arguments) {
			got = args.Get(1).(*mailbus.Message)
		}).
		Return(nil)

	require.NoError(t, newTestNotifier(sender).SendThankYou(context.Background(), "reader@example.com"))
	require.NotNil(t, got)
	assert.Equal(t, "Thank you for subscribing", got.Subject)
	assert.Contains(t, got.Text, "Thank you for subscribing to Mailbus")
	assert.Contains(t, got.Text, "/unsubscribe?")
}

func TestNotifier_UnsubscribeLink(t *testing.T) {
	link, err := newTestNotifier(nil).UnsubscribeLink("reader+news@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://news.example.com/unsubscribe?"))

	u, err := url.Parse(link)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "reader+news@example.com", q.Get("email"))
	assert.True(t, hash.VerifyHmac256(q.Get("email"), q.Get("hash"), secret))
}

func TestNotifier_SendError(t *testing.T) {
	sender := new(mock.EmailSender)
	sender.On("Send", tmock.Anything, tmock.Anything).Return(errors.New("smtp down"))

	err := newTestNotifier(sender).SendConfirmation(context.Background(), "reader@example.com", "abc123")
	assert.EqualError(t, err, "smtp down")
}
