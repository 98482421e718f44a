package compositor

import (
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"screen-recorder/internal/capture"
)

type fakeSurface struct {
	mu      sync.Mutex
	w, h    int
	calls   []string
	circles []Circle
	bubbles []image.Image
	closed  int
}

func (s *fakeSurface) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *fakeSurface) Size() (int, int)          { return s.w, s.h }
func (s *fakeSurface) DrawFrame(img image.Image) { s.record("frame") }
func (s *fakeSurface) DrawCircleImage(img image.Image, c Circle) {
	s.mu.Lock()
	s.bubbles = append(s.bubbles, img)
	s.circles = append(s.circles, c)
	s.mu.Unlock()
	s.record("bubble")
}
func (s *fakeSurface) StrokeCircle(c Circle, width float64, hex string) { s.record("ring") }
func (s *fakeSurface) Snapshot(dst *image.RGBA)                         { s.record("snapshot") }
func (s *fakeSurface) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *fakeSurface) callList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newFakeFactory() (*fakeSurface, SurfaceFactory) {
	fs := &fakeSurface{}
	return fs, func(w, h int) (Surface, error) {
		fs.w, fs.h = w, h
		return fs, nil
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func screenTrack(w, h int) *capture.FrameTrack {
	t := capture.NewFrameTrack(capture.KindScreen, capture.VideoSettings{Width: w, Height: h, FrameRate: 30}, nil)
	t.SetFrame(solid(w, h, color.White))
	return t
}

func TestBubbleLayout(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		wantD  int
		wantCX float64
		wantCY float64
	}{
		{"1080p", 1920, 1080, 216, 24 + 108, 1080 - 24 - 108},
		{"720p", 1280, 720, 144, 24 + 72, 720 - 24 - 72},
		{"portrait", 720, 1280, 144, 24 + 72, 1280 - 24 - 72},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := BubbleLayout(tt.w, tt.h)
			if c.Diameter() != tt.wantD {
				t.Errorf("Diameter() = %d, want %d", c.Diameter(), tt.wantD)
			}
			if c.CX != tt.wantCX || c.CY != tt.wantCY {
				t.Errorf("center = (%v, %v), want (%v, %v)", c.CX, c.CY, tt.wantCX, tt.wantCY)
			}
		})
	}
}

func TestBubbleImageMirrorsAndCrops(t *testing.T) {
	// Left half red, right half blue.
	frame := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if x < 100 {
				frame.Set(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				frame.Set(x, y, color.RGBA{0, 0, 255, 255})
			}
		}
	}

	out := BubbleImage(frame, 50)
	if b := out.Bounds(); b.Dx() != 50 || b.Dy() != 50 {
		t.Fatalf("bounds = %v, want 50x50", b)
	}

	left := out.NRGBAAt(2, 25)
	right := out.NRGBAAt(47, 25)
	if left.B < 200 || left.R > 50 {
		t.Errorf("left edge = %+v, want blue after mirroring", left)
	}
	if right.R < 200 || right.B > 50 {
		t.Errorf("right edge = %+v, want red after mirroring", right)
	}
}

func TestBubbleImageRejectsUnboundedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame image.Image
		d     int
	}{
		{"nil frame", nil, 50},
		{"uniform", image.NewUniform(color.Black), 50},
		{"empty", image.NewRGBA(image.Rectangle{}), 50},
		{"zero diameter", solid(10, 10, color.Black), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := BubbleImage(tt.frame, tt.d); out != nil {
				t.Errorf("BubbleImage() = %v, want nil", out.Bounds())
			}
		})
	}
}

func TestPushFrameSkipsUnboundedCamera(t *testing.T) {
	fs, factory := newFakeFactory()
	cam := capture.NewFrameTrack(capture.KindCamera, capture.VideoSettings{Width: 64, Height: 48, FrameRate: 30}, nil)
	cam.SetFrame(image.NewUniform(color.Black))
	sources := &capture.SourceSet{Screen: screenTrack(320, 180), Camera: cam}

	c := New(sources, Config{FrameRate: 1, NewSurface: factory})
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	c.PushFrame()
	c.Stop()

	for _, call := range fs.callList() {
		if call == "bubble" || call == "ring" {
			t.Errorf("unbounded camera frame drew %q", call)
		}
	}
}

func TestPushFrameDrawOrder(t *testing.T) {
	tests := []struct {
		name   string
		camera bool
		want   []string
	}{
		{"screen only", false, []string{"frame", "snapshot"}},
		{"with camera", true, []string{"frame", "bubble", "ring", "snapshot"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &capture.SourceSet{Screen: screenTrack(640, 360)}
			if tt.camera {
				cam := capture.NewFrameTrack(capture.KindCamera, capture.VideoSettings{Width: 320, Height: 240}, nil)
				cam.SetFrame(solid(320, 240, color.Black))
				set.Camera = cam
			}
			fs, factory := newFakeFactory()

			// A long interval keeps the ticker out of the way.
			c := New(set, Config{FrameRate: 1, NewSurface: factory})
			if _, err := c.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer c.Stop()

			calls := fs.callList()
			if len(calls) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", calls, tt.want)
			}
			for i := range tt.want {
				if calls[i] != tt.want[i] {
					t.Errorf("call[%d] = %q, want %q", i, calls[i], tt.want[i])
				}
			}

			if tt.camera {
				want := BubbleLayout(640, 360)
				if fs.circles[0] != want {
					t.Errorf("bubble circle = %+v, want %+v", fs.circles[0], want)
				}
				if b := fs.bubbles[0].Bounds(); b.Dx() != want.Diameter() {
					t.Errorf("bubble width = %d, want %d", b.Dx(), want.Diameter())
				}
			}
		})
	}
}

func TestStartLocksScreenSize(t *testing.T) {
	screen := capture.NewFrameTrack(capture.KindScreen, capture.VideoSettings{}, nil)
	screen.SetFrame(solid(300, 200, color.White))
	set := &capture.SourceSet{Screen: screen}

	fs, factory := newFakeFactory()
	c := New(set, Config{FrameRate: 1, NewSurface: factory})
	stream, err := c.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()

	if fs.w != 300 || fs.h != 200 {
		t.Errorf("surface = %dx%d, want 300x200", fs.w, fs.h)
	}
	if stream.Settings.Width != 300 || stream.Settings.Height != 200 {
		t.Errorf("stream settings = %+v", stream.Settings)
	}
	if stream.HasAudio() {
		t.Error("HasAudio() = true with no audio sources")
	}
}

func TestStartWithoutScreenFrame(t *testing.T) {
	screen := capture.NewFrameTrack(capture.KindScreen, capture.VideoSettings{}, nil)
	_, factory := newFakeFactory()

	c := New(&capture.SourceSet{Screen: screen}, Config{NewSurface: factory})
	if _, err := c.Start(); err != ErrNoScreenFrame {
		t.Errorf("Start() error = %v, want ErrNoScreenFrame", err)
	}
}

func TestStopIsIdempotentAndReleases(t *testing.T) {
	timersBefore := ActiveTimers()
	graphsBefore := OpenMixGraphs()

	mic := capture.NewPCMTrack(capture.KindMicrophone, capture.DefaultAudioSettings, &silence{}, nil)
	set := &capture.SourceSet{Screen: screenTrack(160, 90), Mic: mic}
	fs, factory := newFakeFactory()

	c := New(set, Config{NewSurface: factory})
	stream, err := c.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !stream.HasAudio() {
		t.Fatal("HasAudio() = false with a microphone")
	}
	if ActiveTimers() != timersBefore+1 {
		t.Errorf("ActiveTimers() = %d, want %d", ActiveTimers(), timersBefore+1)
	}
	if OpenMixGraphs() != graphsBefore+1 {
		t.Errorf("OpenMixGraphs() = %d, want %d", OpenMixGraphs(), graphsBefore+1)
	}

	// Drain frames so the output never backs up.
	go func() {
		for img := range stream.Video.Frames() {
			stream.Video.Recycle(img)
		}
	}()

	time.Sleep(50 * time.Millisecond)

	c.Stop()
	c.Stop()

	if c.Running() {
		t.Error("Running() = true after Stop")
	}
	if ActiveTimers() != timersBefore {
		t.Errorf("ActiveTimers() = %d after Stop, want %d", ActiveTimers(), timersBefore)
	}
	if OpenMixGraphs() != graphsBefore {
		t.Errorf("OpenMixGraphs() = %d after Stop, want %d", OpenMixGraphs(), graphsBefore)
	}
	if fs.closed != 1 {
		t.Errorf("surface closed %d times, want 1", fs.closed)
	}
	if c.LastFrame() == nil {
		t.Error("LastFrame() = nil after Stop")
	}

	n := len(fs.callList())
	c.PushFrame()
	if len(fs.callList()) != n {
		t.Error("PushFrame drew after Stop")
	}
}

func TestStopBeforeStart(t *testing.T) {
	c := New(&capture.SourceSet{Screen: screenTrack(10, 10)}, Config{})
	c.Stop()
	if _, err := c.Start(); err == nil {
		t.Error("Start() after Stop succeeded")
	}
}

type countingObserver struct {
	mu      sync.Mutex
	frames  int
	dropped int
}

func (o *countingObserver) ObserveFrame(float64) {
	o.mu.Lock()
	o.frames++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveDroppedFrame() {
	o.mu.Lock()
	o.dropped++
	o.mu.Unlock()
}

func TestDroppedFramesAreObserved(t *testing.T) {
	obs := &countingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	_, factory := newFakeFactory()
	c := New(&capture.SourceSet{Screen: screenTrack(32, 32)}, Config{FrameRate: 1, NewSurface: factory})
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()

	// Nobody reads the output, so frames beyond its depth are dropped.
	// Start already queued one frame.
	for i := 0; i < outputDepth+2; i++ {
		c.PushFrame()
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.frames != outputDepth+3 {
		t.Errorf("frames = %d, want %d", obs.frames, outputDepth+3)
	}
	if obs.dropped != 3 {
		t.Errorf("dropped = %d, want 3", obs.dropped)
	}
}

type silence struct{}

func (silence) Read(p []byte) (int, error) {
	time.Sleep(5 * time.Millisecond)
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
