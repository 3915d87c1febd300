package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantonganh/mailbus"
)

// Publisher resolves the confirmed subscribers once, then hands them to the
// coordinator. It implements mailbus.PublishService.
//
// There is no idempotency key: publishing the same content twice sends it twice.
type Publisher struct {
	Resolver    *Resolver
	Coordinator *Coordinator
}

// NewPublisher returns a publisher reading subscribers from subscriptions and
// sending through coordinator.
func NewPublisher(subscriptions mailbus.SubscriptionService, coordinator *Coordinator) *Publisher {
	return &Publisher{
		Resolver:    &Resolver{Subscriptions: subscriptions},
		Coordinator: coordinator,
	}
}

// Publish sends content to every confirmed subscriber. It fails only when the
// subscribers cannot be fetched; failed sends are logged and reported.
func (p *Publisher) Publish(ctx context.Context, content *mailbus.Content) error {
	_, err := p.Run(ctx, content)
	return err
}

// Run is Publish returning the report of the run.
func (p *Publisher) Run(ctx context.Context, content *mailbus.Content) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	report := new(Report)

	subscribers, err := p.Resolver.Resolve(ctx, report)
	if err != nil {
		return report, err
	}

	start := time.Now()
	batches := p.Coordinator.Dispatch(ctx, subscribers, content, report)

	sent, skipped, failed := report.Counts()
	logger.Info().
		Int("batches", batches).
		Int("sent", sent).
		Int("skipped", skipped).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Newsletter issue published")

	return report, nil
}
