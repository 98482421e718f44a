package compositor

import (
	"image"
	"sync"

	"screen-recorder/internal/capture"
)

// outputDepth is how many composed frames may wait for the encoder.
const outputDepth = 4

// Stream is the compositor's output: composed video frames plus the mixed
// audio track, which is nil when no audio source is connected.
type Stream struct {
	Video    *VideoOutput
	Audio    capture.AudioTrack
	Settings capture.VideoSettings
}

// HasAudio reports whether the stream carries an audio track.
func (s *Stream) HasAudio() bool { return s.Audio != nil }

// VideoOutput hands composed frames to one consumer. Frames are pooled:
// a consumer that is done with a frame passes it back through Recycle.
type VideoOutput struct {
	frames chan *image.RGBA
	pool   sync.Pool
	rect   image.Rectangle

	mu     sync.Mutex
	closed bool
}

func newVideoOutput(width, height int) *VideoOutput {
	o := &VideoOutput{
		frames: make(chan *image.RGBA, outputDepth),
		rect:   image.Rect(0, 0, width, height),
	}
	o.pool.New = func() any { return image.NewRGBA(o.rect) }
	return o
}

// Frames returns the channel of composed frames. It is closed when the
// compositor stops.
func (o *VideoOutput) Frames() <-chan *image.RGBA { return o.frames }

// Recycle returns a frame to the pool.
func (o *VideoOutput) Recycle(img *image.RGBA) {
	if img != nil && img.Rect == o.rect {
		o.pool.Put(img)
	}
}

func (o *VideoOutput) get() *image.RGBA {
	return o.pool.Get().(*image.RGBA)
}

// offer sends img without blocking. It reports false when the consumer is
// behind or the output is closed; the frame is then recycled.
func (o *VideoOutput) offer(img *image.RGBA) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.pool.Put(img)
		return false
	}
	select {
	case o.frames <- img:
		return true
	default:
		o.pool.Put(img)
		return false
	}
}

func (o *VideoOutput) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}
