// Package metrics registers the Prometheus collectors of the order lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsCommittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderchain_transitions_committed_total",
		Help: "Order transitions finalized through the ledger, by command.",
	},
		[]string{"command"},
	)

	RuleViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderchain_rule_violations_total",
		Help: "Proposed transitions rejected by the rule engine, by kind.",
	},
		[]string{"kind"},
	)

	QuorumFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderchain_quorum_failures_total",
		Help: "Signature collections that ended without quorum, by kind.",
	},
		[]string{"kind"},
	)

	CommitConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderchain_commit_conflicts_total",
		Help: "Submissions refused by the ledger because the version was already consumed.",
	})

	QuorumDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderchain_quorum_duration_seconds",
		Help:    "Time spent collecting countersignatures.",
		Buckets: prometheus.DefBuckets,
	})

	CountersignaturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderchain_countersignatures_total",
		Help: "Countersigning requests reviewed by this node, by outcome.",
	},
		[]string{"outcome"},
	)

	StaleHeads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderchain_stale_heads",
		Help: "Local order heads behind the ledger at the last audit.",
	})
)
