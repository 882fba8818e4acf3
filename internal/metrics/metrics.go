// Package metrics exposes Prometheus instrumentation for the readiness
// engine, accept lock, timer queue, and process table: each worker
// serves its own registry on an optional loopback port (no shared
// memory beyond the accept lock), matching a per-process Prometheus
// registry pattern pared down to this module's much smaller metric
// surface.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps one worker's Prometheus collectors. The zero value is
// not usable; construct with New.
type Registry struct {
	registry *prometheus.Registry

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	acceptMutexHeld   prometheus.Gauge
	acceptDisabled    prometheus.Counter
	timerQueueDepth   prometheus.Gauge
	workerRespawns    prometheus.Counter
	reconfigureTotal  prometheus.Counter
	eventsProcessed   prometheus.Counter
	staleDiscarded    prometheus.Counter
}

// New constructs a Registry labeled with the owning worker's pid,
// matching the "per worker, labeled by worker pid" requirement in
// convention.
func New(workerPID int) *Registry {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"worker_pid": strconv.Itoa(workerPID)}

	r := &Registry{
		registry: reg,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "quasar_connections_active",
			Help:        "Connections currently occupying a slot in this worker's connection table.",
			ConstLabels: constLabels,
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "quasar_connections_total",
			Help:        "Total connections accepted by this worker.",
			ConstLabels: constLabels,
		}),
		acceptMutexHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "quasar_accept_mutex_held",
			Help:        "1 if this worker currently holds the accept lock, else 0.",
			ConstLabels: constLabels,
		}),
		acceptDisabled: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "quasar_accept_disabled_total",
			Help:        "Times this worker declined to attempt the accept lock due to overload shedding.",
			ConstLabels: constLabels,
		}),
		timerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "quasar_timer_queue_depth",
			Help:        "Number of pending timers in this worker's timer queue.",
			ConstLabels: constLabels,
		}),
		workerRespawns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quasar_worker_respawns_total",
			Help: "Total worker respawns observed by the master.",
		}),
		reconfigureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quasar_reconfigure_total",
			Help: "Total successful reconfigure (HUP) cycles completed by the master.",
		}),
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "quasar_events_processed_total",
			Help:        "Total readiness events dispatched to a handler by this worker.",
			ConstLabels: constLabels,
		}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "quasar_stale_events_discarded_total",
			Help:        "Total readiness events discarded as stale (fd==-1 or generation mismatch).",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(
		r.connectionsActive, r.connectionsTotal, r.acceptMutexHeld, r.acceptDisabled,
		r.timerQueueDepth, r.workerRespawns, r.reconfigureTotal, r.eventsProcessed, r.staleDiscarded,
	)
	return r
}

// Handler returns the http.Handler this worker's optional /metrics
// endpoint serves: each worker serves its own metrics handler on an
// optional port the master passes as the --metrics-port flag at spawn
// time.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SetConnectionsActive records the connection table's current occupancy.
func (r *Registry) SetConnectionsActive(n int) { r.connectionsActive.Set(float64(n)) }

// IncConnections records one accepted connection.
func (r *Registry) IncConnections() { r.connectionsTotal.Inc() }

// SetAcceptMutexHeld records whether this worker holds the accept lock.
func (r *Registry) SetAcceptMutexHeld(held bool) {
	if held {
		r.acceptMutexHeld.Set(1)
	} else {
		r.acceptMutexHeld.Set(0)
	}
}

// IncAcceptDisabled records one iteration skipped due to overload
// shedding.
func (r *Registry) IncAcceptDisabled() { r.acceptDisabled.Inc() }

// SetTimerQueueDepth records the timer queue's current length.
func (r *Registry) SetTimerQueueDepth(n int) { r.timerQueueDepth.Set(float64(n)) }

// IncWorkerRespawns records one worker respawn, called from the master.
func (r *Registry) IncWorkerRespawns() { r.workerRespawns.Inc() }

// IncReconfigure records one completed reconfigure cycle.
func (r *Registry) IncReconfigure() { r.reconfigureTotal.Inc() }

// IncEventsProcessed records one dispatched readiness event.
func (r *Registry) IncEventsProcessed() { r.eventsProcessed.Inc() }

// IncStaleDiscarded records one discarded stale readiness event.
func (r *Registry) IncStaleDiscarded() { r.staleDiscarded.Inc() }
