// Package metrics provides Prometheus metrics for the ffnsync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the ffnsync service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Sync pipeline
	syncRuns        *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	recordDecisions *prometheus.CounterVec
	parserRows      *prometheus.CounterVec
	inflightSyncs   prometheus.Gauge

	// Federation upstream
	upstreamLatency prometheus.Histogram
	upstreamErrors  *prometheus.CounterVec

	// Storage
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	storedTotal  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Resync queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueRejected *prometheus.CounterVec
	workerCount   prometheus.Gauge
	workerJobs    *prometheus.CounterVec
	scheduledRuns prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ffnsync",
		subsystem:        "",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.syncRuns = m.counterVec("sync_runs_total", "Athlete sync runs by outcome", "outcome")
	m.syncDuration = m.histogram("sync_duration_milliseconds", "End-to-end duration of one athlete sync")
	m.recordDecisions = m.counterVec("record_decisions_total", "Merge decisions by kind (insert, update, skip, failed)", "decision")
	m.parserRows = m.counterVec("parser_rows_total", "Result rows inspected by the parser, by result", "result")
	m.inflightSyncs = m.gauge("inflight_syncs", "Athletes with a sync currently running or queued")

	m.upstreamLatency = m.histogram("upstream_fetch_latency_milliseconds", "Federation results page fetch latency")
	m.upstreamErrors = m.counterVec("upstream_errors_total", "Federation fetch failures by reason", "reason")

	m.storeLatency = m.histogramVec("store_operation_latency_milliseconds", "Record store operation latency", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Record store failures by operation", "operation")
	m.storedTotal = m.gauge("stored_records", "Number of stored records")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("resync_queue_size", "Current number of queued resync jobs")
	m.queueCapacity = m.gauge("resync_queue_capacity", "Maximum number of queued resync jobs")
	m.queueRejected = m.counterVec("resync_queue_rejected_total", "Resync jobs refused by the queue, by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Number of resync workers")
	m.workerJobs = m.counterVec("worker_jobs_total", "Resync jobs handled by workers, by result", "result")
	m.scheduledRuns = promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scheduled_resync_runs_total",
		Help:        "Number of scheduled resync sweeps",
		ConstLabels: m.constLabels,
	})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSyncRun counts a finished sync (ok, bad_request, conflict, upstream_error, internal_error).
func RecordSyncRun(outcome string, durationMs float64) {
	globalManager.syncRuns.WithLabelValues(outcome).Inc()
	globalManager.syncDuration.Observe(durationMs)
}

// RecordDecisions adds merge decision counts.
func RecordDecisions(inserted, updated, skipped, failed int) {
	globalManager.recordDecisions.WithLabelValues("insert").Add(float64(inserted))
	globalManager.recordDecisions.WithLabelValues("update").Add(float64(updated))
	globalManager.recordDecisions.WithLabelValues("skip").Add(float64(skipped))
	globalManager.recordDecisions.WithLabelValues("failed").Add(float64(failed))
}

// RecordParserRows adds parser row counts.
func RecordParserRows(emitted, discarded int) {
	globalManager.parserRows.WithLabelValues("emitted").Add(float64(emitted))
	globalManager.parserRows.WithLabelValues("discarded").Add(float64(discarded))
}

// UpdateInflightSyncs sets the in-flight sync gauge.
func UpdateInflightSyncs(count int64) {
	globalManager.inflightSyncs.Set(float64(count))
}

// RecordUpstreamLatency records a federation fetch latency.
func RecordUpstreamLatency(latencyMs float64) {
	globalManager.upstreamLatency.Observe(latencyMs)
}

// RecordUpstreamError counts a federation fetch failure.
func RecordUpstreamError(reason string) {
	globalManager.upstreamErrors.WithLabelValues(reason).Inc()
}

// RecordStoreLatency records the latency of a store operation (find, insert, update, list, ...).
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// UpdateStoredRecords sets the stored records gauge.
func UpdateStoredRecords(count int) {
	globalManager.storedTotal.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a refused enqueue (closed, full, cancelled).
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerJob counts a job handled by a worker (ok or failed).
func RecordWorkerJob(result string) {
	globalManager.workerJobs.WithLabelValues(result).Inc()
}

// RecordScheduledRun counts a scheduled resync sweep.
func RecordScheduledRun() {
	globalManager.scheduledRuns.Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
