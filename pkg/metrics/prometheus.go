// Package metrics provides Prometheus metrics for the meshgate controller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the controller.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Submission path
	submissionsReceived prometheus.Counter
	submissionsRejected prometheus.Counter

	// Rotation path
	rotationsTotal     prometheus.Counter
	rotationErrors     prometheus.Counter
	rotationDurationMs prometheus.Histogram
	currentEpoch       prometheus.Gauge
	nodesAllowed       prometheus.Gauge
	nodesDenied        prometheus.Gauge

	// Snapshot publishing
	snapshotsPublished prometheus.Counter
	snapshotsDropped   prometheus.Counter
	publishErrors      prometheus.Counter
	publishLatencyMs   prometheus.Histogram

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "meshgate",
		subsystem:        "controller",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.submissionsReceived = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "benchmark_submissions_total",
		Help:      "Total number of benchmark submissions accepted",
	})

	m.submissionsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "benchmark_submissions_rejected_total",
		Help:      "Total number of benchmark submissions rejected as malformed",
	})

	m.rotationsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "epoch_rotations_total",
		Help:      "Total number of committed epoch rotations (scheduled and forced)",
	})

	m.rotationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "epoch_rotation_errors_total",
		Help:      "Total number of rotations abandoned without commit",
	})

	m.rotationDurationMs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "epoch_rotation_duration_milliseconds",
		Help:      "Histogram of rotation sequence duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.currentEpoch = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "current_epoch_id",
		Help:      "Identifier of the currently committed epoch",
	})

	m.nodesAllowed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "nodes_allowed",
		Help:      "Number of nodes with an ALLOWED verdict in the current epoch",
	})

	m.nodesDenied = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "nodes_denied",
		Help:      "Number of nodes with a DENIED verdict in the current epoch",
	})

	m.snapshotsPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_published_total",
		Help:      "Total number of snapshots handed to the publisher and written",
	})

	m.snapshotsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_dropped_total",
		Help:      "Total number of snapshots dropped due to publisher backpressure",
	})

	m.publishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_publish_errors_total",
		Help:      "Total number of snapshot publish failures",
	})

	m.publishLatencyMs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_publish_latency_milliseconds",
		Help:      "Histogram of snapshot publish latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method, and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})
}

// GetRegistry returns the custom Prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers recording on the global manager.

// RecordSubmissionReceived increments the accepted-submission counter.
func RecordSubmissionReceived() {
	if globalManager.enabled {
		globalManager.submissionsReceived.Inc()
	}
}

// RecordSubmissionRejected increments the rejected-submission counter.
func RecordSubmissionRejected() {
	if globalManager.enabled {
		globalManager.submissionsRejected.Inc()
	}
}

// RecordRotation records a committed rotation and its duration.
func RecordRotation(durationMs float64) {
	if globalManager.enabled {
		globalManager.rotationsTotal.Inc()
		globalManager.rotationDurationMs.Observe(durationMs)
	}
}

// RecordRotationError increments the abandoned-rotation counter.
func RecordRotationError() {
	if globalManager.enabled {
		globalManager.rotationErrors.Inc()
	}
}

// UpdateEpoch sets the current epoch id gauge.
func UpdateEpoch(epochID uint64) {
	if globalManager.enabled {
		globalManager.currentEpoch.Set(float64(epochID))
	}
}

// UpdateVerdictCounts sets the allowed/denied gauges for the current epoch.
func UpdateVerdictCounts(allowed, denied int) {
	if globalManager.enabled {
		globalManager.nodesAllowed.Set(float64(allowed))
		globalManager.nodesDenied.Set(float64(denied))
	}
}

// RecordSnapshotPublished records a successful publish and its latency.
func RecordSnapshotPublished(latencyMs float64) {
	if globalManager.enabled {
		globalManager.snapshotsPublished.Inc()
		globalManager.publishLatencyMs.Observe(latencyMs)
	}
}

// RecordSnapshotDropped increments the backpressure-drop counter.
func RecordSnapshotDropped() {
	if globalManager.enabled {
		globalManager.snapshotsDropped.Inc()
	}
}

// RecordPublishError increments the publish-failure counter.
func RecordPublishError() {
	if globalManager.enabled {
		globalManager.publishErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request by endpoint, method, and status.
func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
	}
}
