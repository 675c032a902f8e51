// Package observability exposes the pipeline's Prometheus metrics: worker
// retry counts, sandbox timeouts, and queue claim/ack latency.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters and histograms C10, C5, and C6 report
// against. A single instance is constructed at startup and shared by
// value (its fields are already pointers) across the worker pool.
type Metrics struct {
	RequestsProcessed *prometheus.CounterVec
	LLMRetries        prometheus.Counter
	SandboxTimeouts   prometheus.Counter
	ClaimLatency      prometheus.Histogram
	ProcessingTime    prometheus.Histogram
}

// NewMetrics registers and returns the pipeline's metrics against reg.
// Pass prometheus.NewRegistry() in tests to avoid colliding with the
// global default registry across parallel test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewpipe_requests_processed_total",
			Help: "Number of review requests the worker loop finished, by terminal status.",
		}, []string{"status"}),
		LLMRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewpipe_llm_retries_total",
			Help: "Number of LLM driver retries across all requests.",
		}),
		SandboxTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewpipe_sandbox_timeouts_total",
			Help: "Number of sandbox runs that hit their wall-clock timeout.",
		}),
		ClaimLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewpipe_queue_claim_latency_seconds",
			Help:    "Time spent blocked in a queue Claim call.",
			Buckets: prometheus.DefBuckets,
		}),
		ProcessingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewpipe_request_processing_seconds",
			Help:    "End-to-end time to process one review request.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	reg.MustRegister(m.RequestsProcessed, m.LLMRetries, m.SandboxTimeouts, m.ClaimLatency, m.ProcessingTime)
	return m
}
