package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "railctl",
			Subsystem: "service",
			Name:      "up",
			Help:      "Whether the service port accepts connections (1 = reachable).",
		}, []string{"name"},
	)
	serviceHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "railctl",
			Subsystem: "service",
			Name:      "healthy",
			Help:      "Whether the service health endpoint reports healthy (1 = healthy, only meaningful for services with an HTTP check).",
		}, []string{"name"},
	)
	statusPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "railctl",
			Subsystem: "status",
			Name:      "passes_total",
			Help:      "Number of completed status passes.",
		},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "railctl",
			Subsystem: "status",
			Name:      "probe_duration_seconds",
			Help:      "Observed per-service probe latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "railctl",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of launch attempts per service.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "railctl",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of stops (graceful or forced).",
		}, []string{"name"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceUp, serviceHealthy, statusPasses, probeDuration, serviceStarts, serviceStops}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func SetUp(name string, up bool) {
	if regOK.Load() {
		serviceUp.WithLabelValues(name).Set(boolGauge(up))
	}
}

func SetHealthy(name string, healthy bool) {
	if regOK.Load() {
		serviceHealthy.WithLabelValues(name).Set(boolGauge(healthy))
	}
}

func IncPass() {
	if regOK.Load() {
		statusPasses.Inc()
	}
}

func ObserveProbe(name string, seconds float64) {
	if regOK.Load() {
		probeDuration.WithLabelValues(name).Observe(seconds)
	}
}

func IncStart(name string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(name).Inc()
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
