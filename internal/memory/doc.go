// Package memory keeps the daemon inside its container memory limit.
//
// Go does not derive GOMEMLIMIT from the cgroup the way it derives
// GOMAXPROCS, so [ConfigureFromEnv] sets it at startup from, in order:
//
//   - GOMEMLIMIT, left untouched when set
//   - MEMORY_LIMIT, a byte count such as the Kubernetes Downward API provides
//   - the cgroup v2 limit in /sys/fs/cgroup/memory.max
//
// Only MEMORY_RATIO of the limit (default 0.7) goes to the Go heap. The
// capture and encoder ffmpeg processes live in the same container.
//
// A recording holds its encoded chunks in memory until upload. [Guard]
// samples the heap and reports pressure once usage crosses the critical
// watermark, and clears it only after usage falls below the high watermark:
//
//	guard := memory.NewGuard(memory.DefaultConfig())
//	guard.Start()
//	defer guard.Stop()
//
//	if guard.UnderPressure() {
//	    // refuse to start a recording
//	}
package memory
