// Package metrics exposes run and review API counters in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"curator/internal/core"
	"curator/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry
	textfile string

	// Run metrics
	RunItems        *prometheus.GaugeVec
	RunErrors       *prometheus.GaugeVec
	RunArtifacts    *prometheus.GaugeVec
	RunCandidates   prometheus.Gauge
	RunDuplicates   prometheus.Gauge
	RunDuration     prometheus.Gauge
	RunLastSuccess  prometheus.Gauge
	FiledWithErrors prometheus.Gauge
	RunsTotal       prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Review metrics
	Transitions *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry. When textfile is
// set, every recorded run rewrites that file for node_exporter.
func NewCollector(namespace, textfile string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		textfile: textfile,
		RunItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_items",
			Help:      "Items processed by the last run, by outcome",
		}, []string{"outcome"}),
		RunErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_errors",
			Help:      "Errors in the last run, by category",
		}, []string{"category"}),
		RunArtifacts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_artifacts",
			Help:      "Artifacts filed by the last run, by output kind",
		}, []string{"kind"}),
		RunCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_candidates",
			Help:      "Candidates left after deduplication in the last run",
		}),
		RunDuplicates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duplicates",
			Help:      "Candidates skipped as already processed in the last run",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		RunLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_last_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		FiledWithErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_filed_with_errors",
			Help:      "Artifacts filed with hard validation errors in the last run",
		}),
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs recorded by this process",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_transitions_total",
			Help:      "Review queue transitions, by action and outcome",
		}, []string{"action", "outcome"}),
	}

	registry.MustRegister(
		c.RunItems, c.RunErrors, c.RunArtifacts, c.RunCandidates, c.RunDuplicates,
		c.RunDuration, c.RunLastSuccess, c.FiledWithErrors, c.RunsTotal,
		c.HTTPRequests, c.HTTPDuration, c.Transitions,
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveRun sets the last-run gauges from s
func (c *Collector) ObserveRun(s *pipeline.Summary) {
	c.RunItems.Reset()
	c.RunErrors.Reset()
	c.RunArtifacts.Reset()

	c.RunItems.WithLabelValues("success").Set(float64(s.SuccessCount))
	c.RunItems.WithLabelValues("error").Set(float64(s.ErrorCount))
	for category, n := range s.ErrorsByCategory {
		c.RunErrors.WithLabelValues(category).Set(float64(n))
	}
	for _, kind := range core.AllOutputKinds {
		c.RunArtifacts.WithLabelValues(string(kind)).Set(0)
	}
	for _, a := range s.Artifacts {
		c.RunArtifacts.WithLabelValues(string(a.Kind)).Inc()
	}
	c.RunCandidates.Set(float64(len(s.Candidates)))
	c.RunDuplicates.Set(float64(s.Duplicates))
	c.RunDuration.Set(s.Duration.Seconds())
	c.RunLastSuccess.Set(float64(s.StartedAt.Add(s.Duration).Unix()))
	c.FiledWithErrors.Set(float64(s.FiledWithErrors))
	c.RunsTotal.Inc()
}

// RecordRun observes s and rewrites the textfile when one is configured
func (c *Collector) RecordRun(_ context.Context, s *pipeline.Summary) error {
	if s == nil || s.DryRun {
		return nil
	}
	c.ObserveRun(s)
	if c.textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(c.textfile, c.registry)
}

// ObserveTransition counts one review queue action
func (c *Collector) ObserveTransition(action, outcome string) {
	c.Transitions.WithLabelValues(action, outcome).Inc()
}

// Handler serves the registry for scraping
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and latency by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
