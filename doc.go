// Package main provides the entry point for the screen recorder daemon.
//
// The daemon records the screen, with optional camera and microphone,
// composites the sources into a single video, uploads the result to a
// remote object store and keeps a local library of what was uploaded.
// A browser UI drives it through the HTTP API.
//
// # Application Lifecycle
//
//  1. Memory Configuration: GOMEMLIMIT from the container limit
//  2. Configuration Loading: environment variables layered over an optional TOML file
//  3. Database Initialization: SQLite store for credentials, recordings and edits
//  4. Component Initialization:
//     - Credential vault and re-authentication broker
//     - Remote store (Google Drive or S3) and upload pipeline
//     - Capture provider (ffmpeg or synthetic) and encoder factory
//     - Poster store and overlay renderer
//     - Memory guard and recording state machine
//     - Metrics collector
//  5. HTTP Server Setup: routes, middleware, optional metrics server
//  6. Graceful Shutdown: SIGINT/SIGTERM stops the session and all components
//
// # HTTP Server
//
// The main server (default port 8080) exposes:
//
//   - /api/session: the live recording session, its event stream and actions
//   - /api/auth: storage sign-in and token delivery
//   - /api/recordings: the uploaded library, playback, posters and edits
//   - /health, /livez, /readyz, /version: probes
//
// The metrics server (default port 9090, optional) serves /metrics.
//
// # Resource Limits
//
// Besides the configuration read by [screen-recorder/internal/startup]:
//
//   - MEMORY_LIMIT, MEMORY_RATIO: GOMEMLIMIT derivation (cgroup v2 limit when unset)
//   - ENCODER_THREADS: encoder thread count (default half the CPUs, at most 8)
//
// New recordings are refused with 503 while the heap is above 85% of the
// memory limit, since a recording is buffered in memory until uploaded.
//
// # Graceful Shutdown
//
//  1. Shutdown main HTTP server (30s timeout)
//  2. Shutdown metrics server (if running)
//  3. Cancel the in-flight upload and release every capture source
//  4. Kill leftover ffmpeg processes
//  5. Stop metrics collector and memory guard
//  6. Close database connections
//
// # Related Packages
//
//   - [screen-recorder/internal/recorder]: recording session state machine
//   - [screen-recorder/internal/capture]: screen, camera and microphone sources
//   - [screen-recorder/internal/compositor]: picture-in-picture compositing
//   - [screen-recorder/internal/encoder]: WebM encoding
//   - [screen-recorder/internal/upload]: remote stores and the upload pipeline
//   - [screen-recorder/internal/handlers]: HTTP request handlers
//   - [screen-recorder/internal/startup]: configuration and initialization
package main
