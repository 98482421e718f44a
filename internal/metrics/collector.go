package metrics

import (
	"os"
	"runtime"
	"sync"
	"time"

	"screen-recorder/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// dbMetricsUpdater is implemented by providers that also report connection
// pool metrics.
type dbMetricsUpdater interface {
	UpdateDBMetrics()
}

// Stats holds the current statistics
type Stats struct {
	TotalRecordings   int
	StarredRecordings int
	TotalDuration     float64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector. dbPath may be empty to skip
// database file size collection.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Calling it more than once is safe.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectMemoryMetrics()
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	RecordingsTotal.Set(float64(stats.TotalRecordings))
	RecordingsStarred.Set(float64(stats.StarredRecordings))
	RecordingsDurationSeconds.Set(stats.TotalDuration)

	if u, ok := c.statsProvider.(dbMetricsUpdater); ok {
		u.UpdateDBMetrics()
	}

	logging.Debug("Metrics collected: recordings=%d, starred=%d, duration=%.0fs",
		stats.TotalRecordings, stats.StarredRecordings, stats.TotalDuration)
}

func (c *Collector) collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	GoMemAllocBytes.Set(float64(m.Alloc))
	GoMemSysBytes.Set(float64(m.Sys))
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}
	for file, path := range map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	} {
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		DBSizeBytes.WithLabelValues(file).Set(float64(size))
	}
}
