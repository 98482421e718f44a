package recorder

import (
	"sync"
	"sync/atomic"
	"time"
)

var activeTimers atomic.Int64

// ActiveTimers returns the number of running countdown and duration timers.
func ActiveTimers() int64 { return activeTimers.Load() }

// ticker calls fn every interval until stopped. Stop does not wait for the
// goroutine, so fn may take the Machine mutex and must tolerate running once
// after Stop.
type ticker struct {
	stop chan struct{}
	once sync.Once
}

func startTicker(interval time.Duration, fn func()) *ticker {
	t := &ticker{stop: make(chan struct{})}
	activeTimers.Add(1)
	go func() {
		defer activeTimers.Add(-1)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				fn()
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// Stop is safe on a nil ticker and on repeated calls.
func (t *ticker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
}
