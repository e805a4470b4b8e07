// Package metrics defines the custom Prometheus metrics of the taskflow API.
// It is the single source of truth for metric names, labels, and help strings.
//
// All collectors are registered with the default registry at package init via
// promauto and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskflow"

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts handled requests.
// Labels:
//   - method: HTTP method
//   - route:  the matched route template (e.g. "/api/projects/:projectId")
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests handled.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration measures request latency by route.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ── Billing metrics ───────────────────────────────────────────────────────────

// WebhookEventsTotal counts billing webhook deliveries.
// Labels:
//   - type:    provider event type (e.g. "customer.subscription.updated")
//   - outcome: "processed", "ignored", "duplicate", "failed" or "invalid_signature"
var WebhookEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "billing_webhook_events_total",
		Help:      "Total number of billing webhook events, by type and outcome.",
	},
	[]string{"type", "outcome"},
)

// WebhookDedupTotal counts deduplication decisions ("hit" or "miss").
var WebhookDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "billing_webhook_dedup_total",
		Help:      "Total number of webhook deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// SubscriptionsReconciledTotal counts subscription rows changed by provider events.
var SubscriptionsReconciledTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscriptions_reconciled_total",
		Help:      "Total number of local subscriptions reconciled from provider events.",
	},
	[]string{"event_type"},
)

// DeadLettersTotal counts dead-letter lifecycle transitions.
// Label:
//   - state: "stored", "retried", "resolved" or "failed"
var DeadLettersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "billing_dead_letters_total",
		Help:      "Total number of billing dead-letter transitions, by state.",
	},
	[]string{"state"},
)

// RetryQueueDepth tracks pending retries in each dispatcher worker channel.
var RetryQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "billing_retry_queue_depth",
		Help:      "Current number of dead letters pending in each retry worker channel.",
	},
	[]string{"worker_id"},
)

// RetryDuration measures one reconciliation retry.
var RetryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "billing_retry_duration_seconds",
		Help:      "Duration of a dead-letter reconciliation retry.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"result"},
)
