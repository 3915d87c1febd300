// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Send outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	NewsletterSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailbus_newsletter_sends_total",
		Help: "Total number of newsletter emails handed to the delivery provider, by outcome",
	}, []string{"outcome"})
	NewsletterBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailbus_newsletter_batches_total",
		Help: "Total number of dispatched newsletter batches",
	})
	SubscribersSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailbus_subscribers_skipped_total",
		Help: "Total number of confirmed subscribers skipped because their stored email is invalid",
	})
	// Reason is one of the labels returned by auth.Reason. Usernames are never used as labels.
	AuthFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailbus_auth_failures_total",
		Help: "Total number of rejected publish requests, by cause",
	}, []string{"reason"})
	PasswordVerifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailbus_password_verify_duration_seconds",
		Help:    "Time spent verifying a password hash, including the wait for a worker",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		NewsletterSends,
		NewsletterBatches,
		SubscribersSkipped,
		AuthFailures,
		PasswordVerifyDuration,
	)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
