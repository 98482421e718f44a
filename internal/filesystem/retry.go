package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"screen-recorder/internal/logging"
)

// VolumeResolver maps paths to volume labels for metrics, by longest
// matching directory prefix.
type VolumeResolver struct {
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute, with trailing slash
	name string
}

// NewVolumeResolver creates a resolver from volume label to directory.
// Empty directories are ignored.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, dir := range volumes {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		if !strings.HasSuffix(abs, "/") {
			abs += "/"
		}
		mounts = append(mounts, volumeMount{path: abs, name: name})
	}
	sort.Slice(mounts, func(i, j int) bool {
		return len(mounts[i].path) > len(mounts[j].path)
	})
	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the label of the volume holding path, or "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}
	for _, m := range vr.mounts {
		if strings.HasPrefix(abs+"/", m.path) {
			return m.name
		}
	}
	return "unknown"
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver sets the resolver used when a RetryConfig has none.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig configures retries of transient filesystem errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver overrides the package default for this call.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns the settings used for the poster cache.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

// isTransient reports whether err is worth retrying: a stale NFS handle
// or a resource that is momentarily busy.
func isTransient(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.ESTALE, syscall.EAGAIN, syscall.EBUSY, syscall.EINTR:
		return true
	}
	return false
}

// withRetry runs fn until it succeeds, fails permanently or runs out of
// retries. op labels the operation in logs and metrics.
func withRetry(op, path string, config RetryConfig, fn func() error) error {
	start := time.Now()
	volume := config.resolveVolume(path)
	backoff := config.InitialBackoff

	var err error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			if err == nil && attempt > 0 {
				logging.Info("Filesystem %s succeeded on retry %d for %s", op, attempt, path)
				if o := observe(); o != nil {
					o.ObserveRetrySuccess(op, volume)
				}
			}
			if o := observe(); o != nil {
				o.ObserveOperation(volume, op, time.Since(start).Seconds(), err)
			}
			return err
		}

		if o := observe(); o != nil {
			o.ObserveTransientError(op, volume)
		}
		if attempt < config.MaxRetries {
			if o := observe(); o != nil {
				o.ObserveRetryAttempt(op, volume)
			}
			logging.Debug("Filesystem %s transient error for %s, retrying in %v (attempt %d/%d): %v",
				op, path, backoff, attempt+1, config.MaxRetries, err)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("Filesystem %s failed after %d retries for %s: %v", op, config.MaxRetries, path, err)
	if o := observe(); o != nil {
		o.ObserveRetryFailure(op, volume)
		o.ObserveOperation(volume, op, time.Since(start).Seconds(), err)
	}
	return err
}

// ReadFile reads path, retrying transient errors.
func ReadFile(path string, config RetryConfig) ([]byte, error) {
	var data []byte
	err := withRetry("read", path, config, func() error {
		var err error
		data, err = os.ReadFile(path)
		return err
	})
	return data, err
}

// WriteFileAtomic writes data to a temporary file beside path and renames
// it into place, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, config RetryConfig) error {
	tmp := path + ".tmp"
	return withRetry("write", path, config, func() error {
		if err := os.WriteFile(tmp, data, perm); err != nil {
			return err
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", tmp, err)
		}
		return nil
	})
}

// Remove deletes path, retrying transient errors. A missing file is not
// an error.
func Remove(path string, config RetryConfig) error {
	return withRetry("remove", path, config, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
}
