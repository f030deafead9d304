// Package metrics provides Prometheus metrics for the StreetFix report service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the StreetFix service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Report lifecycle
	reportsSubmitted  prometheus.Counter
	reportsResolved   prometheus.Counter
	statusTransitions *prometheus.CounterVec
	reportsTracked    prometheus.Gauge

	// Upvote ledger
	upvoteToggles         *prometheus.CounterVec
	upvoteToggleErrors    prometheus.Counter
	reconciliationRuns    prometheus.Counter
	reconciliationRepairs prometheus.Counter

	// Location acquisition
	acquisitionAttempts prometheus.Counter
	acquisitionAccepted prometheus.Counter
	acquisitionRejected *prometheus.CounterVec
	acquisitionLatency  prometheus.Histogram
	geocodeRequests     *prometheus.CounterVec

	// Realtime sync
	snapshotPushes      prometheus.Counter
	snapshotSize        prometheus.Gauge
	activeSubscriptions prometheus.Gauge
	wsClients           prometheus.Gauge

	// Document store
	storeOpLatency *prometheus.HistogramVec
	storeErrors    *prometheus.CounterVec

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec

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
		namespace:        "streetfix",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is inherently long
	auto := promauto.With(m.registry)

	m.reportsSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reports_submitted_total",
		Help:      "Total number of civic-issue reports submitted",
	})

	m.reportsResolved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reports_resolved_total",
		Help:      "Total number of reports resolved (and therefore deleted)",
	})

	m.statusTransitions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "status_transitions_total",
			Help:      "Total number of committed status transitions by target status",
		},
		[]string{"to_status"},
	)

	m.reportsTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reports_tracked",
		Help:      "Current number of live reports in the store",
	})

	m.upvoteToggles = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "upvote_toggles_total",
			Help:      "Total number of upvote toggles by direction",
		},
		[]string{"direction"},
	)

	m.upvoteToggleErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upvote_toggle_errors_total",
		Help:      "Total number of failed upvote toggles",
	})

	m.reconciliationRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconciliation_runs_total",
		Help:      "Total number of upvote counter reconciliation sweeps",
	})

	m.reconciliationRepairs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconciliation_repairs_total",
		Help:      "Total number of counters corrected to match ledger cardinality",
	})

	m.acquisitionAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "acquisition_attempts_total",
		Help:      "Total number of evaluated positioning samples",
	})

	m.acquisitionAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "acquisition_accepted_total",
		Help:      "Total number of accepted coordinates",
	})

	m.acquisitionRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "acquisition_rejected_total",
			Help:      "Total number of terminal acquisition rejections by reason",
		},
		[]string{"reason"},
	)

	m.acquisitionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "acquisition_latency_milliseconds",
		Help:      "Histogram of end-to-end location acquisition latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.geocodeRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "geocode_requests_total",
			Help:      "Total number of reverse-geocode lookups by outcome",
		},
		[]string{"outcome"},
	)

	m.snapshotPushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_pushes_total",
		Help:      "Total number of full-view snapshots pushed to subscribers",
	})

	m.snapshotSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_size",
		Help:      "Record count of the most recent snapshot push",
	})

	m.activeSubscriptions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_subscriptions",
		Help:      "Current number of live store subscriptions",
	})

	m.wsClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_clients",
		Help:      "Current number of connected websocket viewers",
	})

	m.storeOpLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_op_latency_milliseconds",
			Help:      "Document store operation latency in milliseconds by operation",
			Buckets:   m.histogramBuckets,
		},
		[]string{"op"},
	)

	m.storeErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_errors_total",
			Help:      "Total number of document store errors by operation",
		},
		[]string{"op"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and kind",
		},
		[]string{"component", "kind"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current allocated heap bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})
}

// RecordReportSubmitted increments the submitted-reports counter.
func RecordReportSubmitted() {
	globalManager.reportsSubmitted.Inc()
}

// RecordReportResolved increments the resolved-and-deleted counter.
func RecordReportResolved() {
	globalManager.reportsResolved.Inc()
}

// RecordStatusTransition records a committed transition by target status.
func RecordStatusTransition(toStatus string) {
	globalManager.statusTransitions.WithLabelValues(toStatus).Inc()
}

// UpdateReportsTracked sets the live report count gauge.
func UpdateReportsTracked(n int) {
	globalManager.reportsTracked.Set(float64(n))
}

// RecordUpvoteToggle records a toggle; direction is "on" or "off".
func RecordUpvoteToggle(direction string) {
	globalManager.upvoteToggles.WithLabelValues(direction).Inc()
}

// RecordUpvoteToggleError increments the failed-toggle counter.
func RecordUpvoteToggleError() {
	globalManager.upvoteToggleErrors.Inc()
}

// RecordReconciliationRun increments the reconciliation sweep counter.
func RecordReconciliationRun() {
	globalManager.reconciliationRuns.Inc()
}

// RecordReconciliationRepair increments the corrected-counter counter.
func RecordReconciliationRepair() {
	globalManager.reconciliationRepairs.Inc()
}

// RecordAcquisitionAttempt increments the evaluated-sample counter.
func RecordAcquisitionAttempt() {
	globalManager.acquisitionAttempts.Inc()
}

// RecordAcquisitionAccepted increments the accepted-coordinate counter.
func RecordAcquisitionAccepted() {
	globalManager.acquisitionAccepted.Inc()
}

// RecordAcquisitionRejected records a terminal rejection by reason.
func RecordAcquisitionRejected(reason string) {
	globalManager.acquisitionRejected.WithLabelValues(reason).Inc()
}

// RecordAcquisitionLatency records end-to-end acquisition latency.
func RecordAcquisitionLatency(ms float64) {
	globalManager.acquisitionLatency.Observe(ms)
}

// RecordGeocodeRequest records a reverse-geocode lookup outcome.
func RecordGeocodeRequest(outcome string) {
	globalManager.geocodeRequests.WithLabelValues(outcome).Inc()
}

// RecordSnapshotPush records one full-view snapshot push of n records.
func RecordSnapshotPush(n int) {
	globalManager.snapshotPushes.Inc()
	globalManager.snapshotSize.Set(float64(n))
}

// UpdateActiveSubscriptions sets the live-subscription gauge.
func UpdateActiveSubscriptions(n int) {
	globalManager.activeSubscriptions.Set(float64(n))
}

// IncWSClients increments the connected websocket viewer gauge.
func IncWSClients() {
	globalManager.wsClients.Inc()
}

// DecWSClients decrements the connected websocket viewer gauge.
func DecWSClients() {
	globalManager.wsClients.Dec()
}

// RecordStoreOpLatency records a store operation latency by op name.
func RecordStoreOpLatency(op string, ms float64) {
	globalManager.storeOpLatency.WithLabelValues(op).Observe(ms)
}

// RecordStoreError increments the store error counter by op name.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error by component and kind.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
