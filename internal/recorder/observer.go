package recorder

// Observer records state machine metrics. Implementations are provided by
// the metrics package.
type Observer interface {
	// ObserveTransition counts a phase change.
	ObserveTransition(from, to Phase)
	// ObserveChunk records one encoded chunk.
	ObserveChunk(bytes int)
}

var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}
