// Package handlers provides the HTTP API consumed by the recorder UI.
//
// It includes handlers for:
//   - The recording session: snapshot, server-sent events and transitions
//   - Storage sign-in callbacks
//   - Recording metadata, edits, overlay gestures, playback, thumbnails and
//     overlay previews
//   - Health checks and version information
package handlers
