// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

// Package metrics exposes Prometheus instrumentation for the HTTP surface.
//
// # Architecture
//
// Counters and histograms are registered once at startup via [Init]; the
// [Instrument] middleware records per-request metrics and the /metrics
// endpoint is served by [Handler].
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	commandDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_command_decisions_total",
			Help: "Command safety policy decisions by terminal result.",
		},
		[]string{"result"},
	)
)

// Init registers all collectors with the default registry.
// It must be called exactly once at startup.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, commandDecisions)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCommandDecision records a terminal command policy result
// ("executed", "queued", "blocked").
func ObserveCommandDecision(result string) {
	commandDecisions.WithLabelValues(result).Inc()
}

// Instrument wraps a handler with request counting and latency observation.
//
// Paths are deliberately not used as a label: the dashboard rewrites paths
// at the edge and high-cardinality labels would bloat the registry.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
		next.ServeHTTP(recorder, request)

		elapsed := time.Since(start).Seconds()
		status := strconv.Itoa(recorder.status)

		httpRequestDuration.WithLabelValues(request.Method, status).Observe(elapsed)
		httpRequestsTotal.WithLabelValues(request.Method, status).Inc()
		httpInFlight.Dec()
	})
}

// statusRecorder captures the response status code for labelling.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}
