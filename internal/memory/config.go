package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"screen-recorder/internal/logging"
)

const (
	// DefaultMemoryRatio is the share of the container limit given to the Go
	// heap. The rest is left to the ffmpeg capture and encoder processes.
	DefaultMemoryRatio = 0.7

	// cgroupMemoryMax is the cgroup v2 memory limit of the current container.
	cgroupMemoryMax = "/sys/fs/cgroup/memory.max"
)

// ConfigResult describes how GOMEMLIMIT was set.
type ConfigResult struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", "cgroup" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call it
// early in main.
//
// Environment variables:
//   - GOMEMLIMIT: taken as is when set
//   - MEMORY_LIMIT: container limit in bytes, e.g. from the Kubernetes Downward API
//   - MEMORY_RATIO: share of the limit for the Go heap (default 0.7)
//
// Without MEMORY_LIMIT the cgroup v2 limit is used when there is one.
func ConfigureFromEnv() ConfigResult {
	return configure(os.Getenv, cgroupMemoryMax, debug.SetMemoryLimit)
}

func configure(getenv func(string) string, cgroupFile string, setLimit func(int64) int64) ConfigResult {
	if env := getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	limit, source := containerLimit(getenv, cgroupFile)
	if limit <= 0 {
		logging.Debug("No container memory limit found, GOMEMLIMIT not configured")
		return ConfigResult{Source: "none"}
	}

	ratio := DefaultMemoryRatio
	if s := getenv("MEMORY_RATIO"); s != "" {
		parsed, err := strconv.ParseFloat(s, 64)
		switch {
		case err != nil:
			logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", s, err, DefaultMemoryRatio)
		case parsed <= 0 || parsed > 1:
			logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", s, DefaultMemoryRatio)
		default:
			ratio = parsed
		}
	}

	goLimit := int64(float64(limit) * ratio)
	setLimit(goLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s %s limit)",
		formatBytes(goLimit), ratio*100, formatBytes(limit), source)

	return ConfigResult{
		Configured:     true,
		Source:         source,
		ContainerLimit: limit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

// containerLimit returns the memory limit from MEMORY_LIMIT or the cgroup
// file, and which one it came from.
func containerLimit(getenv func(string) string, cgroupFile string) (int64, string) {
	if s := getenv("MEMORY_LIMIT"); s != "" {
		limit, err := strconv.ParseInt(s, 10, 64)
		if err != nil || limit <= 0 {
			logging.Warn("Failed to parse MEMORY_LIMIT %q", s)
			return 0, ""
		}
		return limit, "MEMORY_LIMIT"
	}

	data, err := os.ReadFile(cgroupFile)
	if err != nil {
		return 0, ""
	}
	s := strings.TrimSpace(string(data))
	if s == "max" {
		return 0, ""
	}
	limit, err := strconv.ParseInt(s, 10, 64)
	if err != nil || limit <= 0 {
		return 0, ""
	}
	return limit, "cgroup"
}

// formatBytes formats bytes as a binary-prefixed size.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
