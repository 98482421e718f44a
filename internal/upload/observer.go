package upload

// Observer records upload metrics. Implementations are provided by the
// metrics package to break the import cycle between upload and metrics.
type Observer interface {
	// ObserveUpload records one finished attempt. result is "success",
	// "unauthorized", "service_disabled", "canceled" or "network".
	ObserveUpload(backend, result string, bytes int64, durationSeconds float64)
	// ObserveShareFailure counts a failed make-shareable follow-up.
	ObserveShareFailure(backend string)
}

var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}
