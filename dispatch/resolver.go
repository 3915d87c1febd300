package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/metrics"
)

// Resolver turns the stored confirmed subscribers into a dispatch population.
type Resolver struct {
	Subscriptions mailbus.SubscriptionService
}

// Resolve returns the confirmed subscribers whose stored email parses, in the
// order storage returned them. The others are recorded on report as skips.
func (r *Resolver) Resolve(ctx context.Context, report *Report) ([]mailbus.ConfirmedSubscriber, error) {
	emails, err := r.Subscriptions.FindConfirmedEmails(ctx)
	if err != nil {
		return nil, &mailbus.Error{
			Code:    mailbus.ErrInternal,
			Message: "Failed to fetch confirmed subscribers.",
			Op:      "dispatch.Resolver.Resolve",
			Err:     err,
		}
	}

	logger := zerolog.Ctx(ctx)
	subscribers := make([]mailbus.ConfirmedSubscriber, 0, len(emails))
	for _, raw := range emails {
		email, err := mailbus.ParseSubscriberEmail(raw)
		if err != nil {
			logger.Warn().Err(err).Msg("A confirmed subscriber is using an invalid email address")
			metrics.SubscribersSkipped.Inc()
			report.Skip(raw, err)
			continue
		}
		subscribers = append(subscribers, mailbus.ConfirmedSubscriber{Email: email})
	}

	return subscribers, nil
}
