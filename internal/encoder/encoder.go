package encoder

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"screen-recorder/internal/compositor"
)

// ErrEncoderFailure is reported when encoding stops on its own mid-session.
var ErrEncoderFailure = errors.New("encoder failure")

// DefaultFlushInterval is how often buffered output is emitted as a chunk.
const DefaultFlushInterval = time.Second

// Chunk is one piece of the encoded container. Seq starts at 0 and
// increases by one for every chunk of a recording.
type Chunk struct {
	Seq  int
	Data []byte
}

// Sink receives chunks in order. It is called from a single goroutine.
type Sink func(Chunk)

// Encoder consumes a compositor stream.
type Encoder interface {
	// Start begins encoding. Chunks are passed to sink until Stop.
	Start(ctx context.Context, stream *compositor.Stream, sink Sink) error
	// Pause discards input until Resume.
	Pause()
	Resume()
	// Stop waits for the inputs to end, flushes the remaining output and
	// releases the encoder. It is safe to call more than once.
	Stop() error
	// Failed receives at most one error if encoding ends unexpectedly.
	Failed() <-chan error
	// MimeType is the container type of the produced chunks.
	MimeType() string
}

// Factory creates a fresh encoder for each recording.
type Factory func() Encoder

// chunker buffers encoder output and emits it as sequenced chunks.
type chunker struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	seq  int
	sink Sink
}

func newChunker(sink Sink) *chunker {
	return &chunker{sink: sink}
}

// Write implements io.Writer.
func (c *chunker) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// flush emits buffered bytes as one chunk. Empty flushes emit nothing.
func (c *chunker) flush() {
	c.mu.Lock()
	if c.buf.Len() == 0 {
		c.mu.Unlock()
		return
	}
	chunk := Chunk{Seq: c.seq, Data: bytes.Clone(c.buf.Bytes())}
	c.seq++
	c.buf.Reset()
	c.mu.Unlock()

	if c.sink != nil {
		c.sink(chunk)
	}
}

// run flushes every interval until done is closed, then flushes once more.
func (c *chunker) run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-done:
			c.flush()
			return
		}
	}
}
