package dispatch

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/metrics"
)

const (
	// DefaultBatchSize bounds the number of sends in flight.
	DefaultBatchSize = 20
	// DefaultBatchDelay is the pause between two batches. Together with
	// DefaultBatchSize it bounds the sustained send rate.
	DefaultBatchDelay = 500 * time.Millisecond
)

// Coordinator delivers an issue batch by batch: every member of a batch is
// sent concurrently, the next batch starts once all of them have resolved.
type Coordinator struct {
	Sender      mailbus.EmailSender
	From        string
	BatchSize   int
	BatchDelay  time.Duration
	SendTimeout time.Duration // per send, zero means none

	sleep func(context.Context, time.Duration)
}

// NewCoordinator returns a coordinator with the default batch size and delay.
func NewCoordinator(sender mailbus.EmailSender, from string) *Coordinator {
	return &Coordinator{
		Sender:     sender,
		From:       from,
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
	}
}

// Batches splits subscribers into consecutive groups of at most size members.
func Batches(subscribers []mailbus.ConfirmedSubscriber, size int) [][]mailbus.ConfirmedSubscriber {
	if size <= 0 {
		size = DefaultBatchSize
	}

	var batches [][]mailbus.ConfirmedSubscriber
	for rest := subscribers; len(rest) > 0; {
		n := min(size, len(rest))
		batches = append(batches, rest[:n:n])
		rest = rest[n:]
	}
	return batches
}

// Dispatch sends content to every subscriber and returns the number of batches.
// Failed sends are recorded on report and never stop the run.
func (c *Coordinator) Dispatch(ctx context.Context, subscribers []mailbus.ConfirmedSubscriber, content *mailbus.Content, report *Report) int {
	logger := zerolog.Ctx(ctx)
	batches := Batches(subscribers, c.BatchSize)

	for i, batch := range batches {
		if i > 0 {
			c.pause(ctx)
		}

		logger.Debug().Int("batch", i+1).Int("of", len(batches)).Int("size", len(batch)).Msg("Sending newsletter batch")
		c.sendBatch(ctx, batch, content, report)
		metrics.NewsletterBatches.Inc()
	}

	return len(batches)
}

func (c *Coordinator) sendBatch(ctx context.Context, batch []mailbus.ConfirmedSubscriber, content *mailbus.Content, report *Report) {
	g := new(errgroup.Group)
	g.SetLimit(len(batch))

	for _, s := range batch {
		g.Go(func() error {
			c.send(ctx, s, content, report)
			return nil
		})
	}

	_ = g.Wait()
}

func (c *Coordinator) send(ctx context.Context, s mailbus.ConfirmedSubscriber, content *mailbus.Content, report *Report) {
	if c.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.SendTimeout)
		defer cancel()
	}

	to := s.Email.String()
	err := c.Sender.Send(ctx, &mailbus.Message{
		From:    c.From,
		To:      to,
		Subject: content.Title,
		HTML:    content.HTML,
		Text:    content.Text,
	})
	if err != nil {
		err = errors.Wrapf(err, "failed to send newsletter issue to %s", to)
		zerolog.Ctx(ctx).Error().Err(err).Msg("Newsletter delivery failed")
		sentry.CaptureException(err)
		metrics.NewsletterSends.WithLabelValues(metrics.OutcomeFailure).Inc()
		report.Fail(to, err)
		return
	}

	metrics.NewsletterSends.WithLabelValues(metrics.OutcomeSuccess).Inc()
	report.Sent()
}

func (c *Coordinator) pause(ctx context.Context) {
	if c.sleep != nil {
		c.sleep(ctx, c.BatchDelay)
		return
	}
	if c.BatchDelay <= 0 {
		return
	}

	t := time.NewTimer(c.BatchDelay)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
