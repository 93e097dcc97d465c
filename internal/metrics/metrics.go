// Package metrics defines the Prometheus collectors of notesync. Each
// component registers its own group on the registerer it is given, so a
// nil registerer keeps the collectors private to the component.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notesync"

func factory(reg prometheus.Registerer) promauto.Factory {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return promauto.With(reg)
}

// Queue holds the retry queue collectors.
type Queue struct {
	Enqueued prometheus.Counter
	Attempts *prometheus.CounterVec // result: ok, retry, fatal
	Dropped  prometheus.Counter
	Depth    prometheus.Gauge
}

func NewQueue(reg prometheus.Registerer) *Queue {
	f := factory(reg)
	return &Queue{
		Enqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Total number of operations enqueued",
		}),
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "attempts_total",
			Help:      "Total number of execution attempts by result",
		}, []string{"result"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Total number of operations dropped after failing",
		}),
		Depth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Operations waiting to be executed",
		}),
	}
}

// Router holds the routing collectors.
type Router struct {
	Calls     *prometheus.CounterVec // target: local, cloud, embedded
	Fallbacks prometheus.Counter
}

func NewRouter(reg prometheus.Registerer) *Router {
	f := factory(reg)
	return &Router{
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "calls_total",
			Help:      "Backend calls by routed target",
		}, []string{"target"}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "fallbacks_total",
			Help:      "Cloud calls that failed and were served locally",
		}),
	}
}

// Migration holds the migration collectors.
type Migration struct {
	Runs     *prometheus.CounterVec // result: ok, error, skipped
	Migrated *prometheus.CounterVec // kind: note, folder
}

func NewMigration(reg prometheus.Registerer) *Migration {
	f := factory(reg)
	return &Migration{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "runs_total",
			Help:      "Migration runs by result",
		}, []string{"result"}),
		Migrated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "entities_total",
			Help:      "Entities copied to the cloud by kind",
		}, []string{"kind"}),
	}
}

// Server holds the reference cloud service collectors.
type Server struct {
	Requests *prometheus.CounterVec   // procedure, status
	Duration *prometheus.HistogramVec // procedure
	Clients  prometheus.Gauge
}

func NewServer(reg prometheus.Registerer) *Server {
	f := factory(reg)
	return &Server{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of RPC requests",
		}, []string{"procedure", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Duration of RPC requests",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"procedure"}),
		Clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ws_clients",
			Help:      "Connected websocket presence clients",
		}),
	}
}
