// Package metrics exports verification counters and stage latencies in
// the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/optimode/mailverify/types"
)

// Metrics implements mailverify.Observer. Each instance owns its registry
// so several verifiers in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailverify",
				Subsystem: "stage",
				Name:      "runs_total",
				Help:      "Number of times a verification stage ran, by result",
			},
			[]string{"stage", "passed"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mailverify",
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Time spent in a verification stage",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailverify",
				Name:      "verifications_total",
				Help:      "Completed verifications by status and verification method (failing stage, all or unknown)",
			},
			[]string{"status", "method"},
		),
	}

	m.registry.MustRegister(m.stageRuns, m.stageDuration, m.outcomes)
	return m
}

func (m *Metrics) ObserveStage(stage types.StageName, passed bool, elapsed time.Duration) {
	m.stageRuns.WithLabelValues(stage, strconv.FormatBool(passed)).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOutcome(status types.Status, method types.StageName) {
	m.outcomes.WithLabelValues(string(status), method).Inc()
}

// Registry returns the registry holding the verifier metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
