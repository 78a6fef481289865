// Package metrics exposes Prometheus metrics for the shell session.
//
// Every method is safe on a nil *Metrics, so callers that do not export
// metrics pass nil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mongo_shell_mcp"

// Metrics holds the session collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	Executions       *prometheus.CounterVec
	ExecDuration     prometheus.Histogram
	Redraws          prometheus.Histogram
	Restarts         *prometheus.CounterVec
	SpawnFailures    prometheus.Counter
	ShellRunning     prometheus.Gauge
	NormalizedValues *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Executed commands by result status.",
			},
			[]string{"status"},
		),
		ExecDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Time from send to fully drained response.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		Redraws: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "drain_redraws",
				Help:      "Blank lines sent per drained response.",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
			},
		),
		Restarts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restarts_total",
				Help:      "Shell restarts by reason.",
			},
			[]string{"reason"},
		),
		SpawnFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spawn_failures_total",
				Help:      "Shells that failed to start or died before the first prompt.",
			},
		),
		ShellRunning: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "shell_running",
				Help:      "1 while a shell child is running.",
			},
		),
		NormalizedValues: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "normalized_results_total",
				Help:      "Structured decoding outcomes by kind.",
			},
			[]string{"kind"},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExecution records one Execute call.
func (m *Metrics) ObserveExecution(status string, d time.Duration, redraws int) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(status).Inc()
	m.ExecDuration.Observe(d.Seconds())
	m.Redraws.Observe(float64(redraws))
}

// ObserveRestart records a shell restart.
func (m *Metrics) ObserveRestart(reason string) {
	if m == nil {
		return
	}
	m.Restarts.WithLabelValues(reason).Inc()
}

// ObserveSpawnFailure records a shell that never reached its first prompt.
func (m *Metrics) ObserveSpawnFailure() {
	if m == nil {
		return
	}
	m.SpawnFailures.Inc()
}

// SetRunning records whether a shell child is alive.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.ShellRunning.Set(1)
	} else {
		m.ShellRunning.Set(0)
	}
}

// ObserveNormalized records the kind of structured value recovered.
func (m *Metrics) ObserveNormalized(kind string) {
	if m == nil {
		return
	}
	m.NormalizedValues.WithLabelValues(kind).Inc()
}
