// Package services – pipeline metrics
//
// Prometheus collectors for the webhook and conversation pipeline. They are
// registered on the default registry at init and scraped through /metrics.
// Every label set is bounded: channels, intents, escalation reasons and the
// four webhook outcomes are fixed vocabularies.

package services

import "github.com/prometheus/client_golang/prometheus"

// Pipeline counters. Labels are bounded: channels and intents are fixed
// sets, status is one of the four webhook outcomes.
var (
	webhookMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_messages_total",
			Help: "Inbound webhook messages by channel and outcome.",
		},
		[]string{"channel", "status"},
	)

	// fail-closed rejections; alert on any increase
	ledgerUnavailable = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_unavailable_total",
			Help: "Inbound messages rejected because the idempotency ledger could not be read.",
		},
	)

	intentsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_classified_total",
			Help: "Classified inbound messages by intent.",
		},
		[]string{"intent"},
	)

	escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Threads handed over to a human, by reason.",
		},
		[]string{"reason"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders materialized from confirmed drafts.",
		},
	)

	dispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_failures_total",
			Help: "Outbound replies the provider did not accept.",
		},
		[]string{"channel"},
	)

	// summed over every worker queue
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Jobs waiting for a conversation worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		webhookMessages,
		ledgerUnavailable,
		intentsClassified,
		escalations,
		ordersCreated,
		dispatchFailures,
		queueDepth,
	)
}

// CountDispatchFailure is suitable as dispatch.Dispatcher.OnFailure.
func CountDispatchFailure(channel string) {
	dispatchFailures.WithLabelValues(channel).Inc()
}
