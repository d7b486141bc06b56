// Package metrics exposes the supervisor's Prometheus collectors: counters
// for starts/restarts/stops/fatal transitions and for state transitions by
// origin and destination, a gauge of current state per job instance, and a
// tick-latency histogram.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	instanceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmasterd",
			Subsystem: "instance",
			Name:      "starts_total",
			Help:      "Number of spawn attempts (every attempt, not just successes).",
		}, []string{"job"},
	)
	instanceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmasterd",
			Subsystem: "instance",
			Name:      "restarts_total",
			Help:      "Number of auto-restarts dispatched by the tick loop.",
		}, []string{"job"},
	)
	instanceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmasterd",
			Subsystem: "instance",
			Name:      "stops_total",
			Help:      "Number of operator-requested or teardown stops.",
		}, []string{"job"},
	)
	instanceFatal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmasterd",
			Subsystem: "instance",
			Name:      "fatal_total",
			Help:      "Number of times an instance exhausted start_retries and became Fatal.",
		}, []string{"job"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmasterd",
			Subsystem: "instance",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions, labeled by origin and destination state.",
		}, []string{"job", "from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "taskmasterd",
			Subsystem: "instance",
			Name:      "current_state",
			Help:      "1 if the instance is currently in this state, 0 otherwise.",
		}, []string{"job", "index", "state"},
	)
	tickLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "taskmasterd",
			Subsystem: "supervisor",
			Name:      "tick_duration_seconds",
			Help:      "Time to advance every Job's instances by one tick.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all collectors with r. Safe to call more than once;
// later calls after a success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{instanceStarts, instanceRestarts, instanceStops, instanceFatal, stateTransitions, currentState, tickLatency}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default Prometheus gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(job string) {
	if regOK.Load() {
		instanceStarts.WithLabelValues(job).Inc()
	}
}

func IncRestart(job string) {
	if regOK.Load() {
		instanceRestarts.WithLabelValues(job).Inc()
	}
}

func IncStop(job string) {
	if regOK.Load() {
		instanceStops.WithLabelValues(job).Inc()
	}
}

func IncFatal(job string) {
	if regOK.Load() {
		instanceFatal.WithLabelValues(job).Inc()
	}
}

func RecordStateTransition(job, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(job, from, to).Inc()
	}
}

func SetCurrentState(job, index, state string, active bool) {
	if regOK.Load() {
		v := 0.0
		if active {
			v = 1
		}
		currentState.WithLabelValues(job, index, state).Set(v)
	}
}

func ObserveTick(seconds float64) {
	if regOK.Load() {
		tickLatency.Observe(seconds)
	}
}
