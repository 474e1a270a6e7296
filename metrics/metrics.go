// Package metrics wraps the collective engine's Prometheus collectors,
// grounded on the teacher's metrics/metrics.go: a thin struct around a
// prometheus.Registerer, not a bespoke reporting abstraction.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the collective engine publishes: ops
// submitted and completed per kind, eager bytes moved, barrier rounds
// advanced, and poll-driver passes taken, per spec §8's observable-state
// Non-goal being about correctness assertions, not about forbidding
// counters the ambient stack always carries.
type Metrics struct {
	Registry prometheus.Registerer

	OpsSubmitted  *prometheus.CounterVec
	OpsCompleted  *prometheus.CounterVec
	EagerBytes    prometheus.Counter
	BarrierRounds prometheus.Counter
	PollPasses    prometheus.Counter
	PollLockBusy  prometheus.Counter
}

// New creates and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registry: reg,
		OpsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgasc",
			Name:      "ops_submitted_total",
			Help:      "Collective ops submitted, labeled by kind (broadcast, scatter, gather, gatherall, exchange).",
		}, []string{"kind"}),
		OpsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgasc",
			Name:      "ops_completed_total",
			Help:      "Collective ops that reached StateDone, labeled by kind.",
		}, []string{"kind"}),
		EagerBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pgasc",
			Name:      "eager_bytes_total",
			Help:      "Bytes moved through the p2p eager-buffer path.",
		}),
		BarrierRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pgasc",
			Name:      "barrier_rounds_total",
			Help:      "Consensus counter Try calls made from the IN and OUT sync phases.",
		}),
		PollPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pgasc",
			Name:      "poll_passes_total",
			Help:      "Active-list poll passes taken by any thread.",
		}),
		PollLockBusy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pgasc",
			Name:      "poll_lock_busy_total",
			Help:      "TryLock misses when a thread polled without local work.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.OpsSubmitted, m.OpsCompleted, m.EagerBytes, m.BarrierRounds, m.PollPasses, m.PollLockBusy,
	} {
		_ = m.Registry.Register(c)
	}
	return m
}
