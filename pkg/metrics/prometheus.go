// Package metrics provides Prometheus metrics for the feature registry service.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Registry metrics
	featureOps        *prometheus.CounterVec
	featureOpLatency  *prometheus.HistogramVec
	featuresTotal     prometheus.Gauge
	featuresByStatus  *prometheus.GaugeVec
	storeShardCount   prometheus.Gauge
	storeShardRecords *prometheus.GaugeVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimitRejects    prometheus.Counter
	panicRecoveries     prometheus.Counter

	// Change feed metrics
	changesPublished        prometheus.Counter
	changesDropped          prometheus.Counter
	changesProcessed        prometheus.Counter
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueUtilization        prometheus.Gauge
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	changeLogSize           prometheus.Gauge

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// binding pairs the manager the package recorders write to with the
// registry /metrics exposes. Configure swaps both at once.
type binding struct {
	manager  *Manager
	registry *prometheus.Registry
}

var global atomic.Pointer[binding] //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure rebuilds the package-level metrics on a fresh registry so /metrics
// exposes only what this service defines. Call it at startup, before serving.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, WithPrometheusRegistry(registry))
	global.Store(&binding{manager: NewManager(all...), registry: registry})
}

func current() *Manager {
	return global.Load().manager
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "featreg",
		subsystem:        "registry",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.featureOps = auto.NewCounterVec(
		m.counterOpts("feature_operations_total", "Registry operations by operation and outcome"),
		[]string{"operation", "outcome"},
	)
	m.featureOpLatency = auto.NewHistogramVec(
		m.histogramOpts("feature_operation_latency_milliseconds", "Registry operation latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)
	m.featuresTotal = auto.NewGauge(m.gaugeOpts("features", "Number of registered features"))
	m.featuresByStatus = auto.NewGaugeVec(
		m.gaugeOpts("features_by_status", "Number of registered features per status"),
		[]string{"status"},
	)
	m.storeShardCount = auto.NewGauge(m.gaugeOpts("store_shard_count", "Number of store shards"))
	m.storeShardRecords = auto.NewGaugeVec(
		m.gaugeOpts("store_shard_records", "Number of records held by each store shard"),
		[]string{"shard_id"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status code"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.rateLimitRejects = auto.NewCounter(m.counterOpts("rate_limit_rejects_total", "Requests rejected by the rate limiter"))
	m.panicRecoveries = auto.NewCounter(m.counterOpts("panic_recoveries_total", "Handler panics recovered into 500 responses"))

	m.changesPublished = auto.NewCounter(m.counterOpts("changes_published_total", "Change events accepted by the change feed"))
	m.changesDropped = auto.NewCounter(m.counterOpts("changes_dropped_total", "Change events dropped because the feed was full or closed"))
	m.changesProcessed = auto.NewCounter(m.counterOpts("changes_processed_total", "Change events applied to the change log"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("change_queue_size", "Current change queue backlog"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("change_queue_capacity", "Maximum change queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("change_queue_utilization_ratio", "Change queue backlog / capacity"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("change_worker_count", "Number of change feed workers"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("change_worker_processing_latency_milliseconds", "Time from publish to change log append", m.histogramBuckets),
	)
	m.changeLogSize = auto.NewGauge(m.gaugeOpts("change_log_entries", "Entries currently retained by the change log"))

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and error type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by error type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that ended in an error", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// Registry metrics.

// RecordFeatureOperation counts a registry operation with its outcome.
func RecordFeatureOperation(operation, outcome string) {
	current().featureOps.WithLabelValues(operation, outcome).Inc()
}

// RecordFeatureOperationLatency observes a registry operation latency.
func RecordFeatureOperationLatency(operation string, latencyMs float64) {
	current().featureOpLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateFeaturesTotal sets the number of registered features.
func UpdateFeaturesTotal(count int) {
	current().featuresTotal.Set(float64(count))
}

// UpdateFeaturesByStatus sets the number of features holding status.
func UpdateFeaturesByStatus(status string, count int) {
	current().featuresByStatus.WithLabelValues(status).Set(float64(count))
}

// UpdateStoreShardCount sets the number of store shards.
func UpdateStoreShardCount(count int) {
	current().storeShardCount.Set(float64(count))
}

// UpdateStoreShardRecords sets the record count of one shard.
func UpdateStoreShardRecords(shardID string, count int) {
	current().storeShardRecords.WithLabelValues(shardID).Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	current().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	current().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimitReject counts a request rejected by the limiter.
func RecordRateLimitReject() {
	current().rateLimitRejects.Inc()
}

// RecordPanicRecovery counts a recovered handler panic.
func RecordPanicRecovery() {
	current().panicRecoveries.Inc()
}

// Change feed metrics.

// RecordChangePublished counts a change accepted by the feed.
func RecordChangePublished() {
	current().changesPublished.Inc()
}

// RecordChangeDropped counts a change the feed could not accept.
func RecordChangeDropped() {
	current().changesDropped.Inc()
}

// RecordChangeProcessed counts a change appended to the change log.
func RecordChangeProcessed() {
	current().changesProcessed.Inc()
}

// UpdateQueueSize sets the current change queue backlog.
func UpdateQueueSize(size int) {
	current().queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum change queue capacity.
func UpdateQueueCapacity(capacity int) {
	current().queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the change queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	current().queueUtilization.Set(utilization)
}

// UpdateWorkerCount sets the number of change feed workers.
func UpdateWorkerCount(count int) {
	current().workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records publish-to-apply latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	current().workerProcessingLatency.Observe(latencyMs)
}

// UpdateChangeLogSize sets the number of retained change log entries.
func UpdateChangeLogSize(size int) {
	current().changeLogSize.Set(float64(size))
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	current().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	current().errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	current().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	current().errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	current().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	current().systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	current().systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the Prometheus registry the package recorders use.
func GetRegistry() *prometheus.Registry {
	return global.Load().registry
}
