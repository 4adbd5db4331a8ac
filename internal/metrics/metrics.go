// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "content_engine"

// Metrics holds all collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	LLMFallbacksTotal  *prometheus.CounterVec

	JobRunsTotal      *prometheus.CounterVec
	JobsRunning       prometheus.Gauge
	ScheduledJobs     prometheus.Gauge
	WebhooksTotal     *prometheus.CounterVec
	TrendRefreshTotal *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	m := &Metrics{registry: reg}
	m.initHTTPMetrics(factory)
	m.initGenerationMetrics(factory)
	m.initJobMetrics(factory)
	return m
}

func (m *Metrics) initHTTPMetrics(factory promauto.Factory) {
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

func (m *Metrics) initGenerationMetrics(factory promauto.Factory) {
	m.GenerationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "generations_total",
			Help:      "Content generations by provider and status",
		},
		[]string{"provider", "status"},
	)
	m.GenerationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end generation latency",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)
	m.LLMFallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "llm",
			Name:      "fallbacks_total",
			Help:      "Requests answered by a provider other than the first one tried",
		},
		[]string{"provider"},
	)
}

func (m *Metrics) initJobMetrics(factory promauto.Factory) {
	m.JobRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Bulk job runs by trigger and final status",
		},
		[]string{"trigger", "status"},
	)
	m.JobsRunning = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "jobs_running",
		Help:      "Job runs currently executing on this instance",
	})
	m.ScheduledJobs = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "scheduled_jobs",
		Help:      "Active jobs registered with the cron scheduler",
	})
	m.WebhooksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)
	m.TrendRefreshTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "trends",
			Name:      "refreshes_total",
			Help:      "Trend refreshes by niche and outcome",
		},
		[]string{"niche", "outcome"},
	)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveGeneration records one generation. provider is empty when every
// provider failed.
func (m *Metrics) ObserveGeneration(provider string, fallback bool, err error, d time.Duration) {
	if provider == "" {
		provider = "none"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.GenerationsTotal.WithLabelValues(provider, status).Inc()
	m.GenerationDuration.WithLabelValues(provider).Observe(d.Seconds())
	if fallback {
		m.LLMFallbacksTotal.WithLabelValues(provider).Inc()
	}
}

// ObserveJobRun records a finished job run.
func (m *Metrics) ObserveJobRun(trigger, status string) {
	m.JobRunsTotal.WithLabelValues(trigger, status).Inc()
}

// ObserveWebhook records a webhook delivery outcome.
func (m *Metrics) ObserveWebhook(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.WebhooksTotal.WithLabelValues(outcome).Inc()
}

// ObserveTrendRefresh records a trend refresh outcome.
func (m *Metrics) ObserveTrendRefresh(niche string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.TrendRefreshTotal.WithLabelValues(niche, outcome).Inc()
}

// SetScheduledJobs records how many jobs the cron scheduler holds.
func (m *Metrics) SetScheduledJobs(n int) {
	m.ScheduledJobs.Set(float64(n))
}

// JobStarted marks a job run as executing.
func (m *Metrics) JobStarted() {
	m.JobsRunning.Inc()
}

// JobFinished marks a job run as done.
func (m *Metrics) JobFinished() {
	m.JobsRunning.Dec()
}
