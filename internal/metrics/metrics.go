package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SendsTotal counts dispatch outcomes by terminal result of the
	// provider call: confirmed, retried, failed, deferred.
	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "outreach",
		Name:      "sends_total",
		Help:      "Queue item dispatch outcomes.",
	}, []string{"outcome"})

	// QueuePending is the number of pending queue items at the last tick.
	QueuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "outreach",
		Name:      "queue_pending",
		Help:      "Pending queue items observed at the last scheduler tick.",
	})

	// ReconciledTotal counts stuck items repaired by the sweep.
	ReconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "outreach",
		Name:      "reconciled_total",
		Help:      "Stuck queue items repaired by the reconciliation sweep.",
	})

	// AcceptanceChecksTotal counts acceptance-gate probes by outcome.
	AcceptanceChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "outreach",
		Name:      "acceptance_checks_total",
		Help:      "Connection acceptance gate probes by outcome.",
	}, []string{"outcome"})
)
