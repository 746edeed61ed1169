// Package metrics provides Prometheus metrics collection for datagate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the dispatch pipeline.
type Collector struct {
	// Dispatch metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	CallsInFlight    prometheus.Gauge

	// Validation metrics
	ValidationFailures   *prometheus.CounterVec
	UnconstrainedAccepts prometheus.Counter

	// Authorization metrics
	AuthzDenials *prometheus.CounterVec

	// Callback metrics
	CallbackTimeouts prometheus.Counter

	// Policy metrics
	PolicyReloads      prometheus.Counter
	PolicyReloadErrors prometheus.Counter
	PolicyLastReload   prometheus.Gauge
}

// New creates a new metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a collector registered on reg. Tests pass a private
// registry so parallel tests do not collide on metric names.
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "dispatch_total",
				Help:      "Total number of dispatched calls by operation and exit status",
			},
			[]string{"operation", "status"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "datagate",
				Name:      "dispatch_duration_seconds",
				Help:      "Dispatch duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"operation"},
		),
		CallsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datagate",
				Name:      "calls_in_flight",
				Help:      "Number of calls currently in the pipeline",
			},
		),

		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "validation_failures_total",
				Help:      "Total number of validation rejections by failure kind",
			},
			[]string{"kind"},
		),
		UnconstrainedAccepts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "unconstrained_accepts_total",
				Help:      "Total number of opaque leaves accepted without validation",
			},
		),

		AuthzDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "authz_denials_total",
				Help:      "Total number of authorization denials by operation",
			},
			[]string{"operation"},
		),

		CallbackTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "callback_timeouts_total",
				Help:      "Total number of callbacks terminated by deadline",
			},
		),

		PolicyReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "policy_reloads_total",
				Help:      "Total number of successful policy reloads",
			},
		),
		PolicyReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "datagate",
				Name:      "policy_reload_errors_total",
				Help:      "Total number of failed policy reloads",
			},
		),
		PolicyLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datagate",
				Name:      "policy_last_reload_timestamp_seconds",
				Help:      "Unix timestamp of the last successful policy reload",
			},
		),
	}
}
