// Package metrics provides Prometheus instrumentation for the screen recorder.
//
// All metrics are prefixed with "screen_recorder_" to avoid naming collisions
// with other applications.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//   - SSEClientsConnected: Gauge of open session event streams
//
// ## Database Metrics
//
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBConnectionsOpen: Gauge of open database connections
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//
// ## Session Metrics
//
// Recorded through the recorder.Observer returned by NewRecorderObserver:
//   - SessionTransitionsTotal: Counter of phase transitions by from/to phase
//   - SessionsActive: Gauge set to 1 while a session holds capture resources
//   - EncoderChunksTotal, EncoderBytesTotal: encoded output volume
//
// ## Compositor Metrics
//
//   - CompositorFramesTotal, CompositorFramesDropped, CompositorFrameDuration
//
// ## Upload Metrics
//
//   - UploadsTotal: Counter of upload attempts by backend and result
//   - UploadBytesTotal, UploadDuration: successful transfer volume and latency
//   - UploadShareFailures: public-link grants that failed after upload
//
// ## Library Metrics
//
// Updated periodically by the Collector from a StatsProvider:
//   - RecordingsTotal, RecordingsStarred, RecordingsDurationSeconds
//
// # Usage
//
// Metrics are exposed on the /metrics endpoint using promhttp. Call
// InitializeMetrics at startup so dashboards see zero-valued series before
// the first event.
package metrics
