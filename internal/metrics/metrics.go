// Package metrics exposes sitewatch's Prometheus counters and histograms:
// one counter per pipeline stage outcome and a duration histogram per
// stage, grounded on ariadne's BusinessMetricsCollector/PrometheusExporter
// pairing (engine/monitoring/monitoring.go) collapsed to the metrics
// sitewatch's two orchestrators actually emit.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a dedicated Prometheus registry so sitewatch's metrics
// never collide with any default-registry metrics a dependency registers.
type Registry struct {
	registry *prometheus.Registry

	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	adapterCalls  *prometheus.CounterVec
	findingsTotal *prometheus.CounterVec
}

// New builds a Registry with every sitewatch metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitewatch",
			Name:      "stage_runs_total",
			Help:      "Total number of pipeline stage executions by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sitewatch",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		adapterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitewatch",
			Name:      "adapter_calls_total",
			Help:      "Total number of external data source adapter calls by source and outcome.",
		}, []string{"source", "outcome"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitewatch",
			Name:      "findings_total",
			Help:      "Total number of agent loop terminal actions by action type.",
		}, []string{"action"}),
	}

	reg.MustRegister(r.stageRuns, r.stageDuration, r.adapterCalls, r.findingsTotal)
	return r
}

// Handler returns the HTTP handler serving this registry's metrics, mounted
// at GET /metrics by cmd/sitewatch/main.go.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveStage records one pipeline stage's outcome and wall-clock
// duration. success distinguishes a clean stage return from one recorded
// into StepErrors.
func (r *Registry) ObserveStage(stage string, success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	r.stageRuns.WithLabelValues(stage, outcome).Inc()
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveAdapterCall records one C2 adapter call's outcome.
func (r *Registry) ObserveAdapterCall(source string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	r.adapterCalls.WithLabelValues(source, outcome).Inc()
}

// ObserveFinding records one agent loop terminal action ("submit" or "skip").
func (r *Registry) ObserveFinding(action string) {
	r.findingsTotal.WithLabelValues(action).Inc()
}
