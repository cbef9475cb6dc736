// Package metrics exposes Prometheus collectors for the scheduler, entity
// registry and replication session layers.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	EntitiesAlive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxelcore_entities_alive",
			Help: "Current number of live entities in the registry",
		},
	)

	ComponentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voxelcore_components_total",
			Help: "Current number of components stored, by component type",
		},
		[]string{"component"},
	)

	EntityCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxelcore_entity_created_total",
			Help: "Total number of entities created",
		},
	)

	EntityDestroyedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxelcore_entity_destroyed_total",
			Help: "Total number of entities destroyed",
		},
	)

	// Scheduler metrics
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voxelcore_tick_duration_seconds",
			Help:    "Wall-clock time to run a complete scheduler tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	TickOverrunTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxelcore_tick_overrun_total",
			Help: "Total number of ticks whose dt exceeded the configured maximum",
		},
	)

	TasksRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelcore_tasks_run_total",
			Help: "Total number of system tasks executed, by system name",
		},
		[]string{"system"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxelcore_task_duration_seconds",
			Help:    "Time a single system's Run took, by system name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"system"},
	)

	WorkerUtilization = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxelcore_scheduler_workers_busy",
			Help: "Number of worker goroutines currently executing a task",
		},
	)

	// Session / transport metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxelcore_sessions_active",
			Help: "Current number of established sessions",
		},
	)

	FramesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxelcore_frames_sent_total",
			Help: "Total number of framed messages written to sessions",
		},
	)

	FramesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxelcore_frames_received_total",
			Help: "Total number of framed messages read from sessions",
		},
	)

	BytesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxelcore_bytes_sent_total",
			Help: "Total number of compressed bytes written to sessions",
		},
	)

	BytesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxelcore_bytes_received_total",
			Help: "Total number of compressed bytes read from sessions",
		},
	)

	CompressionRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voxelcore_compression_ratio",
			Help:    "Ratio of uncompressed to compressed frame size",
			Buckets: []float64{1, 1.5, 2, 3, 5, 8, 13, 21},
		},
	)

	SessionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelcore_session_errors_total",
			Help: "Total number of session errors, by cause",
		},
		[]string{"cause"},
	)

	// Replication metrics
	MessagesByTypeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelcore_replication_messages_total",
			Help: "Total number of replication messages sent, by message type",
		},
		[]string{"mtr_id"},
	)

	SyncedEntitiesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxelcore_synced_entities",
			Help: "Current number of entities visible to at least one remote",
		},
	)

	RejectedChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelcore_rejected_changes_total",
			Help: "Total number of component changes rejected by the change validator",
		},
		[]string{"component", "verdict"},
	)
)

func init() {
	prometheus.MustRegister(EntitiesAlive)
	prometheus.MustRegister(ComponentsTotal)
	prometheus.MustRegister(EntityCreatedTotal)
	prometheus.MustRegister(EntityDestroyedTotal)

	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(TickOverrunTotal)
	prometheus.MustRegister(TasksRunTotal)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(WorkerUtilization)

	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(FramesSentTotal)
	prometheus.MustRegister(FramesReceivedTotal)
	prometheus.MustRegister(BytesSentTotal)
	prometheus.MustRegister(BytesReceivedTotal)
	prometheus.MustRegister(CompressionRatio)
	prometheus.MustRegister(SessionErrorsTotal)

	prometheus.MustRegister(MessagesByTypeTotal)
	prometheus.MustRegister(SyncedEntitiesTotal)
	prometheus.MustRegister(RejectedChangesTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// tickOverruns and sessionErrors mirror TickOverrunTotal and
// SessionErrorsTotal in a form the health checker can read back without a
// Prometheus scrape: the Collector compares successive snapshots to decide
// whether the scheduler or session layer looks unhealthy.
var (
	tickOverruns  atomic.Int64
	sessionErrors atomic.Int64
)

// RecordTickOverrun marks one tick whose dt had to be clamped.
func RecordTickOverrun() {
	TickOverrunTotal.Inc()
	tickOverruns.Add(1)
}

// TickOverrunCount returns the cumulative number of clamped ticks.
func TickOverrunCount() int64 { return tickOverruns.Load() }

// RecordSessionError marks one session failure with the given cause.
func RecordSessionError(cause string) {
	SessionErrorsTotal.WithLabelValues(cause).Inc()
	sessionErrors.Add(1)
}

// SessionErrorCount returns the cumulative number of session errors.
func SessionErrorCount() int64 { return sessionErrors.Load() }

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
