package streaming

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"screen-recorder/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout means a single write or the whole stream ran too long.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context was canceled before the
	// stream completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled means the writer was closed or stalled.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config controls a Writer.
type Config struct {
	// WriteTimeout bounds one write to the client.
	WriteTimeout time.Duration
	// IdleTimeout bounds the gap between successful writes.
	IdleTimeout time.Duration
	// MaxDuration bounds the whole stream (0 = unlimited).
	MaxDuration time.Duration
	// ChunkSize splits large writes (0 = write as received).
	ChunkSize int
	// ProgressEvery is how many bytes pass between OnProgress calls.
	ProgressEvery int64
	// OnProgress is called with the running total. May be nil.
	OnProgress func(bytesWritten int64, elapsed time.Duration)
}

// DefaultConfig returns the settings used for recording playback.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   60 * time.Second,
		ChunkSize:     64 * 1024,
		ProgressEvery: 4 * 1024 * 1024,
	}
}

// Writer wraps an http.ResponseWriter so that a stalled or departed client
// ends the copy instead of holding the upstream body open.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     Config
	started time.Time

	mu           sync.Mutex
	lastWrite    time.Time
	written      int64
	nextProgress int64
	closed       bool
}

// NewWriter starts a Writer bound to ctx.
func NewWriter(ctx context.Context, w http.ResponseWriter, cfg Config) *Writer {
	wctx, cancel := context.WithCancel(ctx)
	now := time.Now()

	sw := &Writer{
		w:            w,
		ctx:          wctx,
		cancel:       cancel,
		cfg:          cfg,
		started:      now,
		lastWrite:    now,
		nextProgress: cfg.ProgressEvery,
	}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}

	go sw.watchIdle()
	return sw
}

// Write implements io.Writer.
func (sw *Writer) Write(p []byte) (int, error) {
	sw.mu.Lock()
	closed := sw.closed
	sw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}
	if err := sw.ctx.Err(); err != nil {
		return 0, sw.ctxErr()
	}
	if sw.cfg.MaxDuration > 0 && time.Since(sw.started) > sw.cfg.MaxDuration {
		return 0, ErrWriteTimeout
	}

	size := sw.cfg.ChunkSize
	if size <= 0 || size > len(p) {
		size = len(p)
	}

	total := 0
	for len(p) > 0 {
		if size > len(p) {
			size = len(p)
		}
		n, err := sw.writeOnce(p[:size])
		total += n
		if err != nil {
			return total, err
		}
		p = p[size:]
		if sw.flusher != nil {
			sw.flusher.Flush()
		}
	}
	return total, nil
}

func (sw *Writer) writeOnce(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := sw.w.Write(p)
		done <- result{n, err}
	}()

	var timeout <-chan time.Time
	if sw.cfg.WriteTimeout > 0 {
		t := time.NewTimer(sw.cfg.WriteTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case r := <-done:
		if r.err == nil {
			sw.record(r.n)
		}
		return r.n, r.err
	case <-timeout:
		sw.cancel()
		return 0, ErrWriteTimeout
	case <-sw.ctx.Done():
		return 0, sw.ctxErr()
	}
}

func (sw *Writer) record(n int) {
	sw.mu.Lock()
	sw.lastWrite = time.Now()
	sw.written += int64(n)
	written := sw.written
	report := sw.cfg.OnProgress != nil && sw.cfg.ProgressEvery > 0 && written >= sw.nextProgress
	if report {
		for sw.nextProgress <= written {
			sw.nextProgress += sw.cfg.ProgressEvery
		}
	}
	sw.mu.Unlock()

	if report {
		sw.cfg.OnProgress(written, time.Since(sw.started))
	}
}

func (sw *Writer) watchIdle() {
	if sw.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(sw.cfg.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.mu.Lock()
			idle := time.Since(sw.lastWrite)
			closed := sw.closed
			sw.mu.Unlock()
			if closed {
				return
			}
			if idle > sw.cfg.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				sw.cancel()
				return
			}
		case <-sw.ctx.Done():
			return
		}
	}
}

func (sw *Writer) ctxErr() error {
	if errors.Is(sw.ctx.Err(), context.Canceled) {
		sw.mu.Lock()
		closed := sw.closed
		sw.mu.Unlock()
		if !closed {
			return ErrClientGone
		}
	}
	return ErrStreamCanceled
}

// Close stops the writer. It is safe to call more than once.
func (sw *Writer) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.closed {
		sw.closed = true
		sw.cancel()
	}
	return nil
}

// Stats returns the bytes written and time since the writer started.
func (sw *Writer) Stats() (int64, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.written, time.Since(sw.started)
}
