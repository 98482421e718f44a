package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"screen-recorder/internal/logging"
	"screen-recorder/internal/metrics"
)

// Config configures a Guard.
type Config struct {
	// MemoryLimitBytes is the limit usage is measured against. Zero uses
	// GOMEMLIMIT when it is set.
	MemoryLimitBytes int64
	// CriticalWaterMark is the usage at which new recordings are refused.
	CriticalWaterMark float64
	// HighWaterMark is the usage below which they are allowed again.
	HighWaterMark float64
	CheckInterval time.Duration
}

// DefaultConfig returns the watermarks used by the daemon.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Guard samples heap usage and reports memory pressure. A recording buffers
// its encoded media in memory until it is uploaded, so a new one must not
// start when the heap is already near the limit.
type Guard struct {
	config Config
	limit  int64
	// readAlloc returns the current heap allocation; tests replace it.
	readAlloc func() uint64

	mu        sync.RWMutex
	current   uint64
	pressured bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewGuard creates a guard. Without a limit it never reports pressure.
func NewGuard(config Config) *Guard {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Debug("Memory guard: no memory limit configured, pressure checks disabled")
	} else {
		logging.Info("Memory guard using limit %s", formatBytes(limit))
	}
	return &Guard{
		config:    config,
		limit:     limit,
		readAlloc: heapAlloc,
		stop:      make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Start samples usage every CheckInterval until Stop.
func (g *Guard) Start() {
	if g.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(g.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.check()
			case <-g.stop:
				return
			}
		}
	}()
}

// Stop ends sampling. It is safe to call more than once.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// check samples usage and moves between the normal and pressured states
// with hysteresis between the two watermarks.
func (g *Guard) check() {
	if g.limit == 0 {
		return
	}
	alloc := g.readAlloc()
	usage := float64(alloc) / float64(g.limit)
	metrics.MemoryUsageRatio.Set(usage)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = alloc

	switch {
	case !g.pressured && usage >= g.config.CriticalWaterMark:
		g.pressured = true
		metrics.MemoryPressure.Set(1)
		metrics.MemoryPressureEvents.Inc()
		logging.Warn("Memory critical (%.1f%% of limit), refusing new recordings", usage*100)
		go runtime.GC()
	case g.pressured && usage < g.config.HighWaterMark:
		g.pressured = false
		metrics.MemoryPressure.Set(0)
		logging.Info("Memory recovered (%.1f%% of limit), accepting recordings", usage*100)
	}
}

// UnderPressure reports whether new recordings should be refused.
func (g *Guard) UnderPressure() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pressured
}

// Usage returns the last sampled heap usage as a fraction of the limit, or
// 0 without a limit.
func (g *Guard) Usage() float64 {
	if g.limit == 0 {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return float64(g.current) / float64(g.limit)
}
