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

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terradock",
			Subsystem: "launcher",
			Name:      "launches_total",
			Help:      "Number of successful app launches.",
		}, []string{"app"},
	)
	launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terradock",
			Subsystem: "launcher",
			Name:      "launch_failures_total",
			Help:      "Number of failed launch attempts by failure kind.",
		}, []string{"app", "kind"},
	)
	stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terradock",
			Subsystem: "launcher",
			Name:      "stops_total",
			Help:      "Number of stop requests that terminated a child.",
		}, []string{"app"},
	)
	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terradock",
			Subsystem: "launcher",
			Name:      "exits_total",
			Help:      "Number of reaped child exits, stops included.",
		}, []string{"app"},
	)
	appsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "terradock",
			Subsystem: "launcher",
			Name:      "apps_running",
			Help:      "Current number of running children.",
		},
	)
	portScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "terradock",
			Subsystem: "launcher",
			Name:      "port_scan_seconds",
			Help:      "Time spent finding a free port per launch.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, launchFailures, stops, exits, appsRunning, portScanDuration}
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
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func AppLaunched(app string) {
	if regOK.Load() {
		launches.WithLabelValues(app).Inc()
	}
}

func LaunchFailed(app, kind string) {
	if regOK.Load() {
		launchFailures.WithLabelValues(app, kind).Inc()
	}
}

func AppStopped(app string) {
	if regOK.Load() {
		stops.WithLabelValues(app).Inc()
	}
}

func AppExited(app string) {
	if regOK.Load() {
		exits.WithLabelValues(app).Inc()
	}
}

func IncRunning() {
	if regOK.Load() {
		appsRunning.Inc()
	}
}

func DecRunning() {
	if regOK.Load() {
		appsRunning.Dec()
	}
}

func ObservePortScan(seconds float64) {
	if regOK.Load() {
		portScanDuration.Observe(seconds)
	}
}
