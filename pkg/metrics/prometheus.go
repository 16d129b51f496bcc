// Package metrics provides Prometheus metrics for the league service.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the league service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Submission workflow
	sessionsStarted       *prometheus.CounterVec
	sessionsFinished      *prometheus.CounterVec
	stepTransitions       *prometheus.CounterVec
	invalidSelections     *prometheus.CounterVec
	duplicateInteractions prometheus.Counter
	activeSessions        prometheus.Gauge

	// Commit path
	commits          prometheus.Counter
	commitConflicts  prometheus.Counter
	commitErrors     prometheus.Counter
	commitLatency    prometheus.Histogram
	ratingDelta      prometheus.Histogram
	registeredPlayer prometheus.Gauge

	// Schedule ingestion and export
	matchesIngested *prometheus.CounterVec
	ingestFailures  *prometheus.CounterVec
	exportJobs      prometheus.Counter
	exportErrors    prometheus.Counter
	exportLatency   prometheus.Histogram

	// Standings read model
	standingsSnapshots    prometheus.Counter
	standingsSnapshotUnix prometheus.Gauge
	leaderboardPublished  prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var (
	globalManager  atomic.Pointer[Manager]             //nolint:gochecknoglobals // singleton metrics manager
	customRegistry atomic.Pointer[prometheus.Registry] //nolint:gochecknoglobals // avoids default Go collectors
)

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

func manager() *Manager { return globalManager.Load() }

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "league",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.sessionsStarted = m.counterVec("sessions_started_total", "Submission sessions started", "division")
	m.sessionsFinished = m.counterVec("sessions_finished_total", "Submission sessions finished by outcome", "outcome")
	m.stepTransitions = m.counterVec("step_transitions_total", "Workflow transitions by target state", "state")
	m.invalidSelections = m.counterVec("invalid_selections_total", "Selections rejected because they were not offered", "state")
	m.duplicateInteractions = m.counter("duplicate_interactions_total", "Replayed interaction ids acknowledged without effect")
	m.activeSessions = m.gauge("active_sessions", "Submission sessions currently stored")

	m.commits = m.counter("commits_total", "Match results committed")
	m.commitConflicts = m.counter("commit_conflicts_total", "Commits rejected because the match was already played")
	m.commitErrors = m.counter("commit_errors_total", "Commits aborted by infrastructure failures")
	m.commitLatency = m.histogram("commit_latency_milliseconds", "Commit transaction latency in milliseconds", m.histogramBuckets)
	m.ratingDelta = m.histogram("rating_delta", "Signed rating change applied per participant",
		[]float64{-32, -24, -16, -8, -4, 0, 4, 8, 16, 24, 32})
	m.registeredPlayer = m.gauge("players", "Registered players")

	m.matchesIngested = m.counterVec("matches_ingested_total", "Matches ingested from the schedule source", "division")
	m.ingestFailures = m.counterVec("ingest_failures_total", "Schedule ingestion failures", "division")
	m.exportJobs = m.counter("export_jobs_total", "Match table exports completed")
	m.exportErrors = m.counter("export_errors_total", "Match table exports that failed")
	m.exportLatency = m.histogram("export_latency_milliseconds", "Match table export latency in milliseconds", m.histogramBuckets)

	m.standingsSnapshots = m.counter("standings_snapshots_total", "Standings snapshots published")
	m.standingsSnapshotUnix = m.gauge("standings_snapshot_last_unix", "Unix time of the last standings snapshot")
	m.leaderboardPublished = m.counter("leaderboard_published_total", "Leaderboard posts delivered")

	m.queueSize = m.gauge("queue_size", "Current size of the export queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum export queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Export queue utilization (size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs rejected by the queue")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of running export workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker job failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by route, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by route", "endpoint", "method", "error_type")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSessionStarted counts a new submission session.
func RecordSessionStarted(division string) {
	manager().sessionsStarted.WithLabelValues(division).Inc()
}

// RecordSessionFinished counts a session leaving the store with the given outcome.
func RecordSessionFinished(outcome string) {
	manager().sessionsFinished.WithLabelValues(outcome).Inc()
}

// RecordStepTransition counts a transition into state.
func RecordStepTransition(state string) {
	manager().stepTransitions.WithLabelValues(state).Inc()
}

// RecordInvalidSelection counts a rejected selection in state.
func RecordInvalidSelection(state string) {
	manager().invalidSelections.WithLabelValues(state).Inc()
}

// RecordDuplicateInteraction counts a replayed interaction.
func RecordDuplicateInteraction() {
	manager().duplicateInteractions.Inc()
}

// UpdateActiveSessions sets the number of stored sessions.
func UpdateActiveSessions(n int) {
	manager().activeSessions.Set(float64(n))
}

// RecordCommit counts a committed result and its latency.
func RecordCommit(latencyMs float64) {
	manager().commits.Inc()
	manager().commitLatency.Observe(latencyMs)
}

// RecordCommitConflict counts a commit lost to a concurrent commit.
func RecordCommitConflict() {
	manager().commitConflicts.Inc()
}

// RecordCommitError counts an aborted commit.
func RecordCommitError() {
	manager().commitErrors.Inc()
}

// RecordRatingDelta observes one participant's rating change.
func RecordRatingDelta(delta int) {
	manager().ratingDelta.Observe(float64(delta))
}

// UpdatePlayers sets the registered player count.
func UpdatePlayers(n int) {
	manager().registeredPlayer.Set(float64(n))
}

// RecordMatchesIngested adds n ingested matches for division.
func RecordMatchesIngested(division string, n int) {
	manager().matchesIngested.WithLabelValues(division).Add(float64(n))
}

// RecordIngestFailure counts a failed ingestion for division.
func RecordIngestFailure(division string) {
	manager().ingestFailures.WithLabelValues(division).Inc()
}

// RecordExport counts a finished export and its latency.
func RecordExport(latencyMs float64) {
	manager().exportJobs.Inc()
	manager().exportLatency.Observe(latencyMs)
}

// RecordExportError counts a failed export.
func RecordExportError() {
	manager().exportErrors.Inc()
}

// RecordStandingsSnapshot counts a published standings snapshot.
func RecordStandingsSnapshot(unix int64) {
	manager().standingsSnapshots.Inc()
	manager().standingsSnapshotUnix.Set(float64(unix))
}

// RecordLeaderboardPublished counts a delivered leaderboard post.
func RecordLeaderboardPublished() {
	manager().leaderboardPublished.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	manager().queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	manager().queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	manager().queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	manager().queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	manager().queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	manager().queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	manager().workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	manager().workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	manager().workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	manager().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	manager().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	manager().errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	manager().errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	manager().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	manager().systemGoroutineCount.Set(float64(count))
}

// Configure rebuilds the global collectors with opts on a fresh registry.
// Call it at startup, before GetRegistry is handed to a handler.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	m := NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry.Store(registry)
	globalManager.Store(m)
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry.Load()
}
