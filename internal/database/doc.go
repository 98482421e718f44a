// Package database provides SQLite storage for the screen recorder.
//
// It handles storage and retrieval of:
//   - Recording metadata written after a successful upload
//   - Saved edits (trim window, mute flag, overlays as JSON)
//   - Sealed storage credentials
//   - Small key/value application metadata
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization and column migrations.
package database
