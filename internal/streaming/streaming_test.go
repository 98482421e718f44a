package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"screen-recorder/internal/upload"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want 30s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", cfg.IdleTimeout)
	}
	if cfg.MaxDuration != 0 {
		t.Errorf("MaxDuration = %v, want unlimited", cfg.MaxDuration)
	}
	if cfg.ChunkSize != 64*1024 {
		t.Errorf("ChunkSize = %d, want 64KB", cfg.ChunkSize)
	}
}

func TestWriterChunksAndCounts(t *testing.T) {
	rec := httptest.NewRecorder()
	cfg := Config{WriteTimeout: time.Second, ChunkSize: 4}

	sw := NewWriter(context.Background(), rec, cfg)
	defer sw.Close()

	n, err := sw.Write([]byte("0123456789"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 10 {
		t.Errorf("Write() n = %d, want 10", n)
	}
	if rec.Body.String() != "0123456789" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !rec.Flushed {
		t.Error("chunked writes should flush")
	}
	if written, _ := sw.Stats(); written != 10 {
		t.Errorf("Stats() bytes = %d, want 10", written)
	}
}

func TestWriterProgress(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []int64
	)
	cfg := Config{
		WriteTimeout:  time.Second,
		ChunkSize:     10,
		ProgressEvery: 25,
		OnProgress: func(b int64, _ time.Duration) {
			mu.Lock()
			calls = append(calls, b)
			mu.Unlock()
		},
	}

	sw := NewWriter(context.Background(), httptest.NewRecorder(), cfg)
	defer sw.Close()

	if _, err := sw.Write(make([]byte, 100)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int64{30, 50, 80, 100}
	if len(calls) != len(want) {
		t.Fatalf("progress calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, calls[i], want[i])
		}
	}
}

func TestWriterAfterClose(t *testing.T) {
	sw := NewWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())
	sw.Close()
	sw.Close()

	if _, err := sw.Write([]byte("x")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write() after Close error = %v, want ErrStreamCanceled", err)
	}
}

func TestWriterClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := NewWriter(ctx, httptest.NewRecorder(), DefaultConfig())
	defer sw.Close()

	cancel()
	if _, err := sw.Write([]byte("x")); !errors.Is(err, ErrClientGone) {
		t.Errorf("Write() after cancel error = %v, want ErrClientGone", err)
	}
}

func TestWriterMaxDuration(t *testing.T) {
	cfg := Config{WriteTimeout: time.Second, MaxDuration: time.Millisecond}
	sw := NewWriter(context.Background(), httptest.NewRecorder(), cfg)
	defer sw.Close()

	time.Sleep(5 * time.Millisecond)
	if _, err := sw.Write([]byte("x")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Write() error = %v, want ErrWriteTimeout", err)
	}
}

// blockingWriter never completes a write.
type blockingWriter struct {
	header  http.Header
	release chan struct{}
}

func (b *blockingWriter) Header() http.Header { return b.header }

func (b *blockingWriter) WriteHeader(int) {}

func (b *blockingWriter) Write(p []byte) (int, error) {
	<-b.release
	return len(p), nil
}

func TestWriterWriteTimeout(t *testing.T) {
	bw := &blockingWriter{header: http.Header{}, release: make(chan struct{})}
	defer close(bw.release)

	sw := NewWriter(context.Background(), bw, Config{WriteTimeout: 20 * time.Millisecond})
	defer sw.Close()

	if _, err := sw.Write([]byte("stuck")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Write() error = %v, want ErrWriteTimeout", err)
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	errs := []error{ErrWriteTimeout, ErrClientGone, ErrStreamCanceled}
	for i := range errs {
		for j := range errs {
			if i != j && errors.Is(errs[i], errs[j]) {
				t.Errorf("%v should not match %v", errs[i], errs[j])
			}
		}
	}
}

func TestProxy(t *testing.T) {
	tests := []struct {
		name       string
		dl         upload.Download
		wantStatus int
		wantType   string
		wantRange  string
		wantLength string
	}{
		{
			name:       "full body",
			dl:         upload.Download{ContentType: "video/webm", ContentLength: 11},
			wantStatus: http.StatusOK,
			wantType:   "video/webm",
			wantLength: "11",
		},
		{
			name:       "ranged body",
			dl:         upload.Download{ContentLength: 11, ContentRange: "bytes 0-10/100"},
			wantStatus: http.StatusPartialContent,
			wantType:   upload.ContentType,
			wantRange:  "bytes 0-10/100",
			wantLength: "11",
		},
		{
			name:       "unknown length",
			dl:         upload.Download{ContentType: "video/webm", ContentLength: -1},
			wantStatus: http.StatusOK,
			wantType:   "video/webm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := &closeTracker{Reader: strings.NewReader("hello world")}
			dl := tt.dl
			dl.Body = body

			rec := httptest.NewRecorder()
			n, err := Proxy(context.Background(), rec, &dl, DefaultConfig())
			if err != nil {
				t.Fatalf("Proxy() error = %v", err)
			}
			if n != 11 || rec.Body.String() != "hello world" {
				t.Errorf("Proxy() wrote %d bytes %q", n, rec.Body.String())
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.wantRange {
				t.Errorf("Content-Range = %q, want %q", got, tt.wantRange)
			}
			if got := rec.Header().Get("Content-Length"); got != tt.wantLength {
				t.Errorf("Content-Length = %q, want %q", got, tt.wantLength)
			}
			if rec.Header().Get("Accept-Ranges") != "bytes" {
				t.Error("Accept-Ranges header missing")
			}
			if !body.closed {
				t.Error("upstream body not closed")
			}
		})
	}
}

func TestProxyClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := &closeTracker{Reader: strings.NewReader("data")}
	_, err := Proxy(ctx, httptest.NewRecorder(), &upload.Download{Body: body}, DefaultConfig())
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("Proxy() error = %v, want ErrClientGone", err)
	}
	if !body.closed {
		t.Error("upstream body not closed")
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
