package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screen_recorder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	SSEClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_sse_clients_connected",
			Help: "Number of connected session event streams",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screen_recorder_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "screen_recorder_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Recording session metrics
var (
	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_session_transitions_total",
			Help: "Total number of recording session phase transitions",
		},
		[]string{"from", "to"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_sessions_active",
			Help: "Whether a session currently holds capture devices (1 = capturing)",
		},
	)

	EncoderChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screen_recorder_encoder_chunks_total",
			Help: "Total number of encoded chunks collected",
		},
	)

	EncoderBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screen_recorder_encoder_bytes_total",
			Help: "Total number of encoded bytes collected",
		},
	)
)

// Compositor metrics
var (
	CompositorFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screen_recorder_compositor_frames_total",
			Help: "Total number of composed frames",
		},
	)

	CompositorFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screen_recorder_compositor_frames_dropped_total",
			Help: "Composed frames dropped because the encoder fell behind",
		},
	)

	CompositorFrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screen_recorder_compositor_frame_duration_seconds",
			Help:    "Time spent drawing one frame",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
		},
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_uploads_total",
			Help: "Total number of upload attempts by result",
		},
		[]string{"backend", "result"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_upload_bytes_total",
			Help: "Total number of bytes uploaded successfully",
		},
		[]string{"backend"},
	)

	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screen_recorder_upload_duration_seconds",
			Help:    "Upload duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	UploadShareFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_upload_share_failures_total",
			Help: "Uploads whose shareable link could not be created",
		},
		[]string{"backend"},
	)

	PlaybackBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screen_recorder_playback_bytes_total",
			Help: "Total number of recording bytes proxied to players",
		},
	)
)

// Recording library metrics
var (
	RecordingsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_recordings_total",
			Help: "Number of recordings in the library",
		},
	)

	RecordingsStarred = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_recordings_starred",
			Help: "Number of starred recordings",
		},
	)

	RecordingsDurationSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_recordings_duration_seconds",
			Help: "Combined duration of all recordings",
		},
	)
)

// Authentication metrics
var (
	AuthReauthTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_auth_reauth_total",
			Help: "Total number of storage re-authentication attempts by result",
		},
		[]string{"result"},
	)
)

// Runtime metrics
var (
	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_go_mem_alloc_bytes",
			Help: "Current heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_go_mem_sys_bytes",
			Help: "Total memory obtained from the OS in bytes",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screen_recorder_filesystem_operation_duration_seconds",
			Help:    "Duration of cache file operations including retries",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_filesystem_operation_errors_total",
			Help: "Cache file operations that ended in an error",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_filesystem_retries_total",
			Help: "Retry events of cache file operations by outcome",
		},
		[]string{"operation", "volume", "outcome"},
	)

	FilesystemTransientErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_recorder_filesystem_transient_errors_total",
			Help: "Transient errors (stale NFS handle, busy) seen by cache file operations",
		},
		[]string{"operation", "volume"},
	)
)

// Memory pressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screen_recorder_memory_pressure",
			Help: "1 while new recordings are refused because of memory pressure",
		},
	)

	MemoryPressureEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screen_recorder_memory_pressure_events_total",
			Help: "Times the heap crossed the critical watermark",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "screen_recorder_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
