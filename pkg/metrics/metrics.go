package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsEmitted counts notification dispatch attempts by kind
	// and outcome. Dispatch failures never fail the mutation, so this is
	// the only place they become visible.
	NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quarrel",
		Name:      "notifications_emitted_total",
		Help:      "Notification dispatch attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	// IssueMutations counts engine operations by type.
	IssueMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quarrel",
		Name:      "issue_mutations_total",
		Help:      "Issue mutation operations by type.",
	}, []string{"op"})

	// IndexReconcileFixes counts rows the consistency sweep had to repair.
	IndexReconcileFixes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quarrel",
		Name:      "access_index_reconcile_fixes_total",
		Help:      "Access index rows inserted, deleted or realigned by the reconciler.",
	}, []string{"action"})
)
