package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	limitChecksCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_limits",
			Name:      "checks_total",
			Help:      "Total limit checks by transaction type and resulting status.",
		},
		[]string{"transaction_type", "status"},
	)

	limitOvershootCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_limits",
			Name:      "post_commit_overshoot_total",
			Help:      "Committed transactions whose consumer exceeded a cap once aggregates were recomputed.",
		},
		[]string{"transaction_type", "status"},
	)
)
