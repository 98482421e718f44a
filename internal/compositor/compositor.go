package compositor

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"screen-recorder/internal/capture"
	"screen-recorder/internal/logging"
)

// ErrNoScreenFrame is returned by Start when the screen track has neither
// negotiated settings nor a first frame to take dimensions from.
var ErrNoScreenFrame = errors.New("screen has no frame size yet")

var activeTimers atomic.Int64

// ActiveTimers returns the number of running draw tickers across all
// compositors.
func ActiveTimers() int64 { return activeTimers.Load() }

// Config tunes a Compositor. Zero values use the package defaults.
type Config struct {
	FrameRate  int
	NewSurface SurfaceFactory
	RingColor  string
}

func (c Config) withDefaults() Config {
	if c.FrameRate <= 0 {
		c.FrameRate = FrameRate
	}
	if c.NewSurface == nil {
		c.NewSurface = NewGGSurface
	}
	if c.RingColor == "" {
		c.RingColor = DefaultRingColor
	}
	return c
}

// Compositor draws the screen and the optional camera bubble onto one
// surface at a fixed rate and mixes the audio sources.
type Compositor struct {
	cfg     Config
	sources *capture.SourceSet

	surface Surface
	output  *VideoOutput
	mix     *MixGraph
	width   int
	height  int
	bubble  Circle

	mu      sync.Mutex
	running bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}

	last *image.RGBA
}

// New creates a compositor over sources. Nothing is allocated until Start.
func New(sources *capture.SourceSet, cfg Config) *Compositor {
	return &Compositor{
		cfg:     cfg.withDefaults(),
		sources: sources,
	}
}

// Start locks the surface size to the screen, wires the audio graph and
// starts drawing. It may be called once.
func (c *Compositor) Start() (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.stopped {
		return nil, errors.New("compositor already started")
	}
	if c.sources == nil || c.sources.Screen == nil {
		return nil, errors.New("no screen source")
	}

	w, h := screenSize(c.sources.Screen)
	if w <= 0 || h <= 0 {
		return nil, ErrNoScreenFrame
	}

	surface, err := c.cfg.NewSurface(w, h)
	if err != nil {
		return nil, err
	}
	c.surface = surface
	c.width, c.height = w, h
	c.bubble = BubbleLayout(w, h)
	c.output = newVideoOutput(w, h)

	c.mix = NewMixGraph(capture.DefaultAudioSettings)
	c.mix.Connect(c.sources.SystemAudio)
	c.mix.Connect(c.sources.Mic)
	c.mix.Start()

	// Paint once so the first frame exists before the first tick.
	c.pushFrameLocked()

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.running = true
	activeTimers.Add(1)
	go c.loop(time.Second / time.Duration(c.cfg.FrameRate))

	logging.Info("Compositor started: %dx%d @ %dfps (camera: %v, audio inputs: %d)",
		w, h, c.cfg.FrameRate, c.sources.Camera != nil, c.mix.Inputs())

	return &Stream{
		Video: c.output,
		Audio: c.mix.Destination(),
		Settings: capture.VideoSettings{
			Width:     w,
			Height:    h,
			FrameRate: float64(c.cfg.FrameRate),
		},
	}, nil
}

// screenSize prefers the negotiated settings and falls back to the bounds
// of the first frame.
func screenSize(screen capture.VideoTrack) (int, int) {
	s := screen.Settings()
	if s.Width > 0 && s.Height > 0 {
		return s.Width, s.Height
	}
	var w, h int
	screen.ReadFrame(func(frame image.Image) {
		b := frame.Bounds()
		w, h = b.Dx(), b.Dy()
	})
	return w, h
}

func (c *Compositor) loop(interval time.Duration) {
	defer close(c.done)
	defer activeTimers.Add(-1)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.PushFrame()
		case <-c.stop:
			return
		}
	}
}

// PushFrame draws one frame and offers it to the output. Ticks after Stop
// are ignored.
func (c *Compositor) PushFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.pushFrameLocked()
}

func (c *Compositor) pushFrameLocked() {
	start := time.Now()

	c.sources.Screen.ReadFrame(func(frame image.Image) {
		if usableFrame(frame) {
			c.surface.DrawFrame(frame)
		}
	})

	if cam := c.sources.Camera; cam != nil {
		d := c.bubble.Diameter()
		var bubble image.Image
		cam.ReadFrame(func(frame image.Image) {
			if b := BubbleImage(frame, d); b != nil {
				bubble = b
			}
		})
		if bubble != nil {
			c.surface.DrawCircleImage(bubble, c.bubble)
			c.surface.StrokeCircle(c.bubble, RingWidth, c.cfg.RingColor)
		}
	}

	img := c.output.get()
	c.surface.Snapshot(img)
	if !c.output.offer(img) {
		if o := defaultObserver; o != nil {
			o.ObserveDroppedFrame()
		}
	}

	if o := defaultObserver; o != nil {
		o.ObserveFrame(time.Since(start).Seconds())
	}
}

// maxFrameSide bounds the frames the compositor accepts from a source.
const maxFrameSide = 16384

// usableFrame reports whether frame has non-empty, finite bounds.
func usableFrame(frame image.Image) bool {
	if frame == nil {
		return false
	}
	b := frame.Bounds()
	return !b.Empty() && b.Dx() <= maxFrameSide && b.Dy() <= maxFrameSide
}

// BubbleImage mirrors a camera frame horizontally and centre-crops it to a
// square of side d. It returns nil for frames without usable bounds.
func BubbleImage(frame image.Image, d int) *image.NRGBA {
	if d <= 0 || !usableFrame(frame) {
		return nil
	}
	mirrored := imaging.FlipH(frame)
	return imaging.Fill(mirrored, d, d, imaging.Center, imaging.Linear)
}

// Stop halts drawing, closes the audio graph and the output, and keeps a
// copy of the last surface for the poster. It returns once the draw loop has
// exited. Calling it again does nothing.
func (c *Compositor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.stopped = true
		c.mu.Unlock()
		return
	}
	c.running = false
	c.stopped = true
	close(c.stop)
	c.mu.Unlock()

	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mix.Close()

	c.last = image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	c.surface.Snapshot(c.last)
	if err := c.surface.Close(); err != nil {
		logging.Debug("closing surface: %v", err)
	}
	c.output.close()
	logging.Debug("Compositor stopped")
}

// Running reports whether the draw loop is active.
func (c *Compositor) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// LastFrame returns the final surface captured by Stop, or nil before Stop.
func (c *Compositor) LastFrame() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Size returns the locked surface size. It is zero before Start.
func (c *Compositor) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}
