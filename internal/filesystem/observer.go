package filesystem

// Observer records filesystem operation metrics. The metrics package
// provides the implementation.
type Observer interface {
	// ObserveOperation records the total time of an operation, retries
	// included, and its final error.
	ObserveOperation(volume, operation string, durationSeconds float64, err error)
	ObserveRetryAttempt(operation, volume string)
	ObserveRetrySuccess(operation, volume string)
	ObserveRetryFailure(operation, volume string)
	ObserveTransientError(operation, volume string)
}

// defaultObserver is nil in tests, which skips recording.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
