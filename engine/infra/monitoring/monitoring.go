// Package monitoring exposes Prometheus metrics and a rolling in-process
// view of request latency for the system-metrics endpoint.
package monitoring

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Rolling latency window bounds: trimmed in one batch once full.
	latencyWindowCap  = 1000
	latencyWindowKeep = 500
)

// Service owns the metrics registry and the rolling latency window.
type Service struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	llmCalls *prometheus.CounterVec

	mu        sync.Mutex
	latencies []time.Duration
	started   time.Time
}

func NewService() *Service {
	registry := prometheus.NewRegistry()
	s := &Service{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexiscope_http_requests_total",
			Help: "HTTP requests by route, method, and status.",
		}, []string{"route", "method", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexiscope_http_errors_total",
			Help: "HTTP responses with status >= 500 by route.",
		}, []string{"route"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lexiscope_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexiscope_llm_completions_total",
			Help: "LLM completions by outcome.",
		}, []string{"outcome"}),
		started: time.Now(),
	}
	registry.MustRegister(s.requests, s.errors, s.latency, s.llmCalls)
	return s
}

// Handler serves the Prometheus exposition endpoint.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (s *Service) ObserveRequest(route, method, status string, duration time.Duration, serverError bool) {
	s.requests.WithLabelValues(route, method, status).Inc()
	s.latency.WithLabelValues(route).Observe(duration.Seconds())
	if serverError {
		s.errors.WithLabelValues(route).Inc()
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, duration)
	if len(s.latencies) > latencyWindowCap {
		s.latencies = append(s.latencies[:0], s.latencies[len(s.latencies)-latencyWindowKeep:]...)
	}
	s.mu.Unlock()
}

// ObserveCompletion records one LLM completion outcome.
func (s *Service) ObserveCompletion(degraded bool) {
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	s.llmCalls.WithLabelValues(outcome).Inc()
}

// Snapshot is the system-metrics view served over the API.
type Snapshot struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	RequestsObserved int     `json:"requests_observed"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
	P95LatencyMS     float64 `json:"p95_latency_ms"`
}

// Stats summarizes the rolling latency window.
func (s *Service) Stats() Snapshot {
	s.mu.Lock()
	window := make([]time.Duration, len(s.latencies))
	copy(window, s.latencies)
	s.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds:    time.Since(s.started).Seconds(),
		RequestsObserved: len(window),
	}
	if len(window) == 0 {
		return snap
	}
	var total time.Duration
	for _, d := range window {
		total += d
	}
	snap.AvgLatencyMS = float64(total.Milliseconds()) / float64(len(window))
	snap.P95LatencyMS = float64(percentile(window, 0.95).Milliseconds())
	return snap
}

func percentile(window []time.Duration, p float64) time.Duration {
	sorted := make([]time.Duration, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
