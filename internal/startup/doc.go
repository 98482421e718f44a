// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is resolved by [Load] (quiet) or [LoadConfig] (with banner and
// directory checks). Values come from the environment first, then from the
// optional TOML file named by CONFIG_FILE. Nested tables in the file map onto
// underscore-joined keys, so [s3] bucket is read as S3_BUCKET.
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - CACHE_DIR: Path to cache directory for poster frames (default: /cache)
//   - USER_ID: Owner recorded against saved recordings (default: local)
//   - STORAGE_BACKEND: drive or s3 (default: drive)
//   - DRIVE_API_URL, DRIVE_FOLDER_NAME: Drive endpoint overrides
//   - S3_BUCKET, S3_REGION, S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_LINK_TTL
//   - CAPTURE_BACKEND: x11, avfoundation or synthetic (default: x11)
//   - CAPTURE_DISPLAY, CAMERA_DEVICE, MIC_DEVICE, SYSTEM_AUDIO_DEVICE
//   - FFMPEG_PATH: ffmpeg binary used for capture and encoding (default: ffmpeg)
//   - AUTH_TIMEOUT: How long a token request waits for sign-in (default: 2m)
//   - CREDENTIAL_KEY: Passphrase sealing the stored storage token
//   - ENCODER_VIDEO_BITRATE: Target video bitrate (default: 2500k)
//   - OVERLAY_FONT: TrueType font for text overlays
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES, LOG_HEALTH_CHECKS: Request logging toggles
//
// # Directory Setup
//
// The database directory is required and must be writable. The poster
// directory under CACHE_DIR is optional; when it cannot be created poster
// frames are disabled and blank thumbnails are served.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogCaptureInit]: Capture backend and ffmpeg availability
//   - [LogStorageInit]: Upload backend selection
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
