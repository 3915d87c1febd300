package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/mock"
)

func storedEmails(n int) []string {
	emails := make([]string, n)
	for i := range emails {
		emails[i] = subscriberEmail(i)
	}
	return emails
}

func TestResolver_SkipsInvalidEmails(t *testing.T) {
	emails := append(storedEmails(10), "definitely-not-an-email")
	subscriptions := new(mock.SubscriptionService)
	subscriptions.On("FindConfirmedEmails", tmock.Anything).Return(emails, nil)

	r := &Resolver{Subscriptions: subscriptions}
	report := new(Report)

	subs, err := r.Resolve(context.Background(), report)
	require.NoError(t, err)
	require.Len(t, subs, 10)
	for i, s := range subs {
		assert.Equal(t, subscriberEmail(i), s.Email.String(), "fetch order is kept")
	}

	entries := report.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{
		Subject: "definitely-not-an-email",
		Kind:    KindSkip,
		Reason:  entries[0].Reason,
	}, entries[0])
}

func TestResolver_StorageFailure(t *testing.T) {
	subscriptions := new(mock.SubscriptionService)
	subscriptions.On("FindConfirmedEmails", tmock.Anything).Return(nil, errors.New("connection refused"))

	r := &Resolver{Subscriptions: subscriptions}

	subs, err := r.Resolve(context.Background(), new(Report))
	assert.Nil(t, subs)
	assert.Equal(t, mailbus.ErrInternal, mailbus.ErrorCode(err))
	assert.Contains(t, mailbus.ErrorChain(err), "Caused by:\n\tconnection refused")
}

func TestPublisher_Run(t *testing.T) {
	tests := []struct {
		name    string
		emails  []string
		sends   int
		skipped int
	}{
		{name: "45 valid", emails: storedEmails(45), sends: 45},
		{name: "10 of 11 valid", emails: append(storedEmails(10), "broken@"), sends: 10, skipped: 1},
		{name: "empty", emails: []string{}, sends: 0},
		{name: "single", emails: storedEmails(1), sends: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subscriptions := new(mock.SubscriptionService)
			subscriptions.On("FindConfirmedEmails", tmock.Anything).Return(tt.emails, nil)
			sender := &recordingSender{}
			var pauses int

			p := NewPublisher(subscriptions, newTestCoordinator(sender, &pauses))
			report, err := p.Run(context.Background(), testContent)
			require.NoError(t, err)

			assert.Equal(t, tt.sends, sender.calls())
			sent, skipped, failed := report.Counts()
			assert.Equal(t, tt.sends, sent)
			assert.Equal(t, tt.skipped, skipped)
			assert.Zero(t, failed)
		})
	}
}

func TestPublisher_NoDeduplicationAcrossRuns(t *testing.T) {
	subscriptions := new(mock.SubscriptionService)
	subscriptions.On("FindConfirmedEmails", tmock.Anything).Return(storedEmails(7), nil)
	sender := &recordingSender{}
	var pauses int

	p := NewPublisher(subscriptions, newTestCoordinator(sender, &pauses))
	for i := 0; i < 2; i++ {
		require.NoError(t, p.Publish(context.Background(), testContent), fmt.Sprint("run ", i))
	}

	assert.Equal(t, 14, sender.calls(), "every run is a full fan-out")
	subscriptions.AssertNumberOfCalls(t, "FindConfirmedEmails", 2)
}

func TestPublisher_AllSendsFailStillSucceeds(t *testing.T) {
	subscriptions := new(mock.SubscriptionService)
	subscriptions.On("FindConfirmedEmails", tmock.Anything).Return(storedEmails(3), nil)
	sender := new(mock.EmailSender)
	sender.On("Send", tmock.Anything, tmock.Anything).Return(errors.New("provider down"))
	var pauses int

	p := NewPublisher(subscriptions, newTestCoordinator(sender, &pauses))
	report, err := p.Run(context.Background(), testContent)
	require.NoError(t, err)

	_, _, failed := report.Counts()
	assert.Equal(t, 3, failed)
	sender.AssertNumberOfCalls(t, "Send", 3)
}
