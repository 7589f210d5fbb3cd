package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	intakeRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_transactions",
			Name:      "intake_requests_total",
			Help:      "Total intake requests by workflow and outcome.",
		},
		[]string{"workflow_name", "outcome"}, // outcome: created, duplicate, rejected_limit, invalid, error
	)

	intakeDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledger_transactions",
			Name:      "intake_duration_seconds",
			Help:      "Duration of transaction intake including post-processing.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"workflow_name"},
	)

	postProcessingFailuresCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_transactions",
			Name:      "post_processing_failures_total",
			Help:      "Committed transactions whose post-processing failed.",
		},
		[]string{"workflow_name"},
	)

	statusChangesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_transactions",
			Name:      "status_changes_total",
			Help:      "Transaction status changes by target status.",
		},
		[]string{"workflow_name", "status"},
	)
)
