package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	payrollTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_payroll",
			Name:      "transitions_total",
			Help:      "Payroll status transitions by source and target status.",
		},
		[]string{"from", "to"},
	)

	disbursementFanoutCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_payroll",
			Name:      "disbursement_deposits_total",
			Help:      "Disbursement deposits attempted during fan-out, by outcome.",
		},
		[]string{"outcome"},
	)

	fundingMatchesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_payroll",
			Name:      "funding_matches_total",
			Help:      "Incoming funding deposits by reconciliation result.",
		},
		[]string{"result"},
	)
)

var (
	resumeRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_payroll",
			Name:      "resume_runs_total",
			Help:      "Disbursement resume attempts on stalled payrolls, by outcome.",
		},
		[]string{"outcome"},
	)
	resumeDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ledger_payroll",
			Name:      "resume_duration_seconds",
			Help:      "Duration of one disbursement resume attempt.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
