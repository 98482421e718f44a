package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EncoderThreadsEnv overrides the encoder thread count.
const EncoderThreadsEnv = "ENCODER_THREADS"

// Count returns a thread or worker count of multiplier per available CPU,
// capped at limit (0 for no cap). A positive integer in the environment
// variable envKey replaces the computed value; the cap still applies.
//
// Available CPUs come from GOMAXPROCS, which follows container CPU limits.
func Count(envKey string, multiplier float64, limit int) int {
	if envKey != "" {
		if override := os.Getenv(envKey); override != "" {
			if count, err := strconv.Atoi(override); err == nil && count > 0 {
				return capAt(count, limit)
			}
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	return capAt(n, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns one per available CPU.
func ForCPU(envKey string, limit int) int {
	return Count(envKey, 1.0, limit)
}

// EncoderThreads returns the thread count handed to the video encoder.
// The encoder shares the machine with capture and compositing, so it gets
// at most half the CPUs and never more than 8.
func EncoderThreads() int {
	return Count(EncoderThreadsEnv, 0.5, 8)
}
