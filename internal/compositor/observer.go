package compositor

// Observer records compositor metrics. Implementations are provided by the
// metrics package to break the import cycle between compositor and metrics.
type Observer interface {
	// ObserveFrame records how long one draw tick took.
	ObserveFrame(durationSeconds float64)
	// ObserveDroppedFrame counts a composed frame the encoder was too slow to take.
	ObserveDroppedFrame()
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}
