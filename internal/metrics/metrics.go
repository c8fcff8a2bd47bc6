// Package metrics holds the engine's Prometheus metrics, registered in
// init() and served by promhttp.Handler() from cmd/posengine, the same
// shape as the teacher's metrics.go.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_events_applied_total",
			Help: "Events successfully applied, by event type and path.",
		},
		[]string{"event_type", "path"}, // path: hotpath|coldpath
	)

	TradesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_trades_rejected_total",
			Help: "Trades rejected, by error kind.",
		},
		[]string{"kind"},
	)

	HotpathLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posengine_hotpath_apply_seconds",
			Help:    "Latency of one hotpath apply-protocol invocation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
	)

	ColdpathLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posengine_coldpath_replay_seconds",
			Help:    "Latency of one coldpath replay invocation.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	VersionConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_version_conflicts_total",
			Help: "Optimistic-lock version conflicts encountered, by path.",
		},
		[]string{"path"},
	)

	DeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_dead_lettered_total",
			Help: "Trades/events routed to the dead-letter channel, by error kind.",
		},
		[]string{"kind"},
	)

	DirectionChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "posengine_direction_changes_total",
			Help: "Trades that triggered a long<->short direction-change split.",
		},
	)

	ProvisionalApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "posengine_provisional_applied_total",
			Help: "Backdated trades that took the provisional-estimate hotpath.",
		},
	)

	CircuitOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "posengine_circuit_open",
			Help: "1 if the named dependency circuit breaker is open, else 0.",
		},
		[]string{"dependency"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsApplied,
		TradesRejected,
		HotpathLatencySeconds,
		ColdpathLatencySeconds,
		VersionConflicts,
		DeadLettered,
		DirectionChanges,
		ProvisionalApplied,
		CircuitOpen,
	)
}
