package compositor

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"screen-recorder/internal/capture"
	"screen-recorder/internal/logging"
)

// mixInterval is the block size of the mixer in wall-clock time.
const mixInterval = 20 * time.Millisecond

var openMixGraphs atomic.Int64

// OpenMixGraphs returns the number of mix graphs started and not yet closed.
func OpenMixGraphs() int64 { return openMixGraphs.Load() }

// MixGraph sums zero, one or two PCM inputs into one destination track.
type MixGraph struct {
	settings capture.AudioSettings
	inputs   []*pcmBuffer
	sources  []capture.AudioTrack
	dest     *pcmBuffer
	track    *capture.PCMTrack

	stop      chan struct{}
	done      chan struct{}
	started   bool
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewMixGraph creates an empty graph producing the given layout.
func NewMixGraph(settings capture.AudioSettings) *MixGraph {
	return &MixGraph{
		settings: settings,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Connect adds a source. Sources must be connected before Start; sources
// with a different PCM layout are skipped.
func (g *MixGraph) Connect(src capture.AudioTrack) {
	if src == nil || g.started {
		return
	}
	if src.Settings() != g.settings {
		logging.Warn("Skipping %s audio: layout %+v does not match %+v", src.Kind(), src.Settings(), g.settings)
		return
	}
	g.sources = append(g.sources, src)
	g.inputs = append(g.inputs, newPCMBuffer(g.bytesPerSecond()))
}

// Inputs returns the number of connected sources.
func (g *MixGraph) Inputs() int { return len(g.sources) }

// Start begins mixing. With no inputs it does nothing and Destination stays nil.
func (g *MixGraph) Start() {
	if g.started || len(g.sources) == 0 {
		return
	}
	g.started = true
	openMixGraphs.Add(1)

	g.dest = newPCMBuffer(g.bytesPerSecond())
	g.track = capture.NewPCMTrack(capture.KindMicrophone, g.settings, g.dest, nil)

	for i, src := range g.sources {
		go pump(src, g.inputs[i])
	}
	go g.mixLoop()
}

// Destination returns the mixed output track, or nil when there is no audio.
func (g *MixGraph) Destination() capture.AudioTrack {
	if g.track == nil {
		return nil
	}
	return g.track
}

// Close stops mixing and ends the destination track. Only the first call has
// any effect; it returns after the mix loop has exited.
func (g *MixGraph) Close() {
	g.closeOnce.Do(func() {
		g.closed.Store(true)
		if !g.started {
			return
		}
		close(g.stop)
		<-g.done
		for _, in := range g.inputs {
			in.Close()
		}
		g.dest.Close()
		g.track.Stop()
		openMixGraphs.Add(-1)
	})
}

// Closed reports whether Close has been called.
func (g *MixGraph) Closed() bool { return g.closed.Load() }

func (g *MixGraph) bytesPerSecond() int {
	return g.settings.SampleRate * g.settings.Channels * 2
}

func (g *MixGraph) blockSize() int {
	frames := g.settings.SampleRate * int(mixInterval/time.Millisecond) / 1000
	return frames * g.settings.Channels * 2
}

func (g *MixGraph) mixLoop() {
	defer close(g.done)

	ticker := time.NewTicker(mixInterval)
	defer ticker.Stop()

	block := g.blockSize()
	out := make([]byte, block)
	acc := make([]int32, block/2)

	for {
		select {
		case <-ticker.C:
			for i := range acc {
				acc[i] = 0
			}
			for _, in := range g.inputs {
				addSamples(acc, in.Take(block))
			}
			for i, v := range acc {
				binary.LittleEndian.PutUint16(out[2*i:], uint16(clamp16(v)))
			}
			g.dest.Write(out)
		case <-g.stop:
			return
		}
	}
}

// addSamples accumulates s16le samples into acc. Short input is treated as silence.
func addSamples(acc []int32, pcm []byte) {
	for i := 0; i+1 < len(pcm) && i/2 < len(acc); i += 2 {
		acc[i/2] += int32(int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
}

func clamp16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// pump copies a source into its input buffer until the source ends.
func pump(src io.Reader, dst *pcmBuffer) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			dst.Write(buf[:n])
		}
		if err != nil {
			return
		}
		if dst.isClosed() {
			return
		}
	}
}

// pcmBuffer is a bounded byte FIFO. Writes beyond the limit drop the oldest
// bytes, keeping frame alignment; Read blocks until data arrives or Close.
type pcmBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	limit  int
	closed bool
}

func newPCMBuffer(limit int) *pcmBuffer {
	b := &pcmBuffer{limit: limit}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *pcmBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		over = (over + 3) &^ 3
		if over > len(b.buf) {
			over = len(b.buf)
		}
		b.buf = b.buf[over:]
	}
	b.cond.Broadcast()
}

// Take removes up to n bytes without blocking.
func (b *pcmBuffer) Take(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.buf) {
		n = len(b.buf) - len(b.buf)%2
	}
	out := make([]byte, n)
	copy(out, b.buf[:n])
	b.buf = b.buf[n:]
	return out
}

// Read implements io.Reader.
func (b *pcmBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.buf) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *pcmBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *pcmBuffer) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
