package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors for the settlement pipeline. All financial detail stays
// internal; these expose only counts.
var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendpot_webhook_events_total",
		Help: "Inbound webhook callbacks by kind and verification outcome.",
	}, []string{"kind", "outcome"})

	DonationsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendpot_donations_settled_total",
		Help: "Donation callbacks processed by settlement outcome.",
	}, []string{"outcome"})

	PayoutsDisbursed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendpot_payouts_disbursed_total",
		Help: "Payout result callbacks processed by outcome.",
	}, []string{"outcome"})

	QueueRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendpot_callback_queue_retries_total",
		Help: "Callback deliveries re-queued after a handler error.",
	})

	QueueParked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendpot_callback_queue_parked_total",
		Help: "Callback deliveries parked after exhausting retries.",
	})

	ReconcileDiscrepancies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendpot_reconciliation_discrepancies_total",
		Help: "Reconciliation deltas exceeding tolerance, by category.",
	}, []string{"category"})
)

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
