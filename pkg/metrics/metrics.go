// Package metrics exposes Prometheus collectors for driver builds, probing,
// extraction and the HTTP client.
//
// All collectors are registered on the default registry through promauto, so
// serving promhttp.Handler() is enough to expose them.
//
// # Basic Usage
//
//	timer := metrics.NewTimer("build")
//	outcome, _ := orch.BuildDriver(ctx, req)
//	metrics.BuildDuration.WithLabelValues(req.SourceName).Observe(timer.Stop().Seconds())
//	metrics.BuildsTotal.WithLabelValues(req.SourceName, metrics.Status(outcome.Success)).Inc()
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adagent"

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Status maps a boolean outcome onto a status label value.
func Status(ok bool) string {
	if ok {
		return StatusSuccess
	}
	return StatusFailure
}

var (
	// BuildsTotal counts completed build runs.
	// Labels: source, status (success/failure)
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total number of driver build runs",
		},
		[]string{"source", "status"},
	)

	// BuildAttempts counts individual generate-and-test attempts.
	// Labels: source, outcome (success or the error type of the failure)
	BuildAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_attempts_total",
			Help:      "Total number of driver build attempts",
		},
		[]string{"source", "outcome"},
	)

	// BuildDuration tracks wall time of a whole build run.
	BuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of driver build runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// ProbesTotal counts probe runs by detected pagination kind or failure.
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total number of API probes",
		},
		[]string{"result"},
	)

	// RecordsExtracted counts records yielded by drivers.
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Total number of records yielded by drivers",
		},
		[]string{"source"},
	)

	// ExtractThroughput is the record rate of the last extraction per source.
	ExtractThroughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extract_records_per_second",
			Help:      "Records per second achieved by the most recent extraction",
		},
		[]string{"source"},
	)

	// RecordsMerged counts rows written by the record store.
	RecordsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_merged_total",
			Help:      "Total number of records merged into the store",
		},
		[]string{"table"},
	)

	// RateLimitWaits counts pauses taken because remaining quota was low.
	RateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Number of pauses taken due to low remaining rate-limit quota",
		},
		[]string{"source"},
	)

	// HTTPRequests counts outbound HTTP requests.
	// Labels: host, code (status code or "error")
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"host", "code"},
	)

	// HTTPLatency tracks outbound request latency.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Outbound HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"host"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker counts records over a window and reports a rate.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
}

// NewThroughputTracker creates a tracker whose window starts now.
func NewThroughputTracker() *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now()}
}

// Increment adds n to the record count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns records per second since the last reset and starts a
// new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()
	return throughput
}
