// Package metrics exports solver statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cognicore/kbs/pkg/kbs"
)

const namespace = "kbs"

// Observer records solve and conflict events. It implements kbs.Observer.
type Observer struct {
	solves      prometheus.Counter
	passes      prometheus.Histogram
	transitions prometheus.Histogram
	duration    prometheus.Histogram
	conflicts   prometheus.Counter
}

var _ kbs.Observer = (*Observer)(nil)

// NewObserver registers the solver metrics on reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		solves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solves_total",
			Help:      "Total fixpoint runs",
		}),
		passes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "passes",
			Help:      "Passes needed to reach a fixpoint",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
		}),
		transitions: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "transitions",
			Help:      "Nodes solved per fixpoint run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "duration_seconds",
			Help:      "Fixpoint run latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "conflicts_total",
			Help:      "Conflicts reported by HasConflict",
		}),
	}
}

// SolveFinished records one completed fixpoint run.
func (o *Observer) SolveFinished(stats kbs.SolveStats) {
	o.solves.Inc()
	o.passes.Observe(float64(stats.Passes))
	o.transitions.Observe(float64(stats.Transitions))
	o.duration.Observe(stats.Duration.Seconds())
}

// ConflictDetected counts a reported conflict.
func (o *Observer) ConflictDetected(*kbs.Conflict) {
	o.conflicts.Inc()
}
