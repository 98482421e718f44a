package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Database storage ---
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "save_recording", "get_recording", "list_recordings",
		"update_recording", "save_edit", "delete_recording", "recording_stats",
		"get_credential", "set_credential", "delete_credential", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	// --- Upload results per backend ---
	for _, backend := range []string{"drive", "s3"} {
		for _, result := range []string{"success", "unauthorized", "service_disabled", "canceled", "network"} {
			UploadsTotal.WithLabelValues(backend, result)
		}
		UploadBytesTotal.WithLabelValues(backend)
		UploadDuration.WithLabelValues(backend)
		UploadShareFailures.WithLabelValues(backend)
	}

	// --- Poster cache file operations ---
	for _, op := range []string{"read", "write", "remove"} {
		FilesystemOperationDuration.WithLabelValues("cache", op)
		FilesystemOperationErrors.WithLabelValues("cache", op)
	}

	// --- Re-authentication ---
	for _, result := range []string{"success", "timeout", "canceled"} {
		AuthReauthTotal.WithLabelValues(result)
	}
}
