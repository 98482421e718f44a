package encoder

import (
	"sync"
	"time"
)

// cadence keeps the number of frames written to a constant-rate input in
// step with unpaused wall time. ffmpeg stamps rawvideo by frame count, so
// every dropped or late frame is made up by repeating the previous one.
type cadence struct {
	mu       sync.Mutex
	now      func() time.Time
	interval time.Duration
	started  time.Time
	pausedAt time.Time
	paused   time.Duration
	written  int64
}

func newCadence(now func() time.Time) *cadence {
	return &cadence{now: now, interval: time.Second / 30}
}

func (c *cadence) setRate(fps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fps > 0 {
		c.interval = time.Duration(float64(time.Second) / fps)
	}
}

// elapsed must be called with mu held.
func (c *cadence) elapsed() time.Duration {
	end := c.now()
	if !c.pausedAt.IsZero() {
		end = c.pausedAt
	}
	return end.Sub(c.started) - c.paused
}

// take returns how many frames must be written so that the total covers
// wall time up to and including the current frame slot. Zero means the
// input is ahead and the frame is dropped.
func (c *cadence) take(inclusive bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		if !inclusive {
			return 0
		}
		c.started = c.now()
	}
	want := int64(c.elapsed() / c.interval)
	if inclusive {
		want++
	}
	n := want - c.written
	if n <= 0 {
		return 0
	}
	c.written += n
	return int(n)
}

// next is the count for a newly arrived frame.
func (c *cadence) next() int { return c.take(true) }

// drain is the count of repeats needed at end of stream.
func (c *cadence) drain() int { return c.take(false) }

func (c *cadence) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started.IsZero() && c.pausedAt.IsZero() {
		c.pausedAt = c.now()
	}
}

func (c *cadence) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pausedAt.IsZero() {
		c.paused += c.now().Sub(c.pausedAt)
		c.pausedAt = time.Time{}
	}
}
