package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the simulation collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	stageErrors     *prometheus.CounterVec
	modelCalls      *prometheus.CounterVec
	modelDuration   *prometheus.HistogramVec
	fanoutFallbacks *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	inflightCalls   prometheus.Gauge
}

// NewMetrics creates collectors on a private registry.
func NewMetrics(serviceName string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)
	m.stageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_errors_total",
			Help: "Pipeline stage failures by error kind",
		},
		[]string{"stage", "kind"},
	)
	m.modelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_calls_total",
			Help: "Model invocations by model and outcome",
		},
		[]string{"model", "outcome"},
	)
	m.modelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_duration_seconds",
			Help:    "Model invocation latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	m.fanoutFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_fallbacks_total",
			Help: "Per-persona tasks replaced by a fallback record",
		},
		[]string{"stage"},
	)
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Completed pipeline runs by terminal status",
		},
		[]string{"status"},
	)
	m.inflightCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_calls_inflight",
			Help: "Model calls currently holding a concurrency slot",
			ConstLabels: prometheus.Labels{
				"service": serviceName,
			},
		},
	)

	m.registry.MustRegister(
		m.stageDuration,
		m.stageErrors,
		m.modelCalls,
		m.modelDuration,
		m.fanoutFallbacks,
		m.runsTotal,
		m.inflightCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) StageError(stage, kind string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage, kind).Inc()
}

func (m *Metrics) ModelCall(model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(model, outcome).Inc()
	m.modelDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) FanoutFallback(stage string) {
	if m == nil {
		return
	}
	m.fanoutFallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

// InflightAdd adjusts the in-flight model call gauge.
func (m *Metrics) InflightAdd(delta float64) {
	if m == nil {
		return
	}
	m.inflightCalls.Add(delta)
}
