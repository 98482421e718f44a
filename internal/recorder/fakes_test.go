package recorder

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"screen-recorder/internal/capture"
	"screen-recorder/internal/compositor"
	"screen-recorder/internal/encoder"
	"screen-recorder/internal/upload"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 9, 30, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// solidFrame returns a bounded frame filled with c.
func solidFrame(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// fakeProvider hands out in-memory tracks and remembers them.
type fakeProvider struct {
	mu        sync.Mutex
	screenErr error
	cameraErr error
	micErr    error
	system    bool
	tracks    []capture.Track
	screen    *capture.FrameTrack
}

func (p *fakeProvider) keep(t capture.Track) {
	p.mu.Lock()
	p.tracks = append(p.tracks, t)
	p.mu.Unlock()
}

func (p *fakeProvider) Screen(ctx context.Context, c capture.Constraints) (capture.VideoTrack, capture.AudioTrack, error) {
	if p.screenErr != nil {
		return nil, nil, p.screenErr
	}
	screen := capture.NewFrameTrack(capture.KindScreen, capture.VideoSettings{Width: 320, Height: 180, FrameRate: 30}, nil)
	screen.SetFrame(solidFrame(320, 180, color.White))
	p.keep(screen)
	p.mu.Lock()
	p.screen = screen
	p.mu.Unlock()

	if !p.system {
		return screen, nil, nil
	}
	sys := capture.NewPCMTrack(capture.KindSystemAudio, capture.DefaultAudioSettings, silence{}, nil)
	p.keep(sys)
	return screen, sys, nil
}

func (p *fakeProvider) Camera(ctx context.Context) (capture.VideoTrack, error) {
	if p.cameraErr != nil {
		return nil, p.cameraErr
	}
	cam := capture.NewFrameTrack(capture.KindCamera, capture.VideoSettings{Width: 64, Height: 48, FrameRate: 30}, nil)
	cam.SetFrame(solidFrame(64, 48, color.Black))
	p.keep(cam)
	return cam, nil
}

func (p *fakeProvider) Microphone(ctx context.Context) (capture.AudioTrack, error) {
	if p.micErr != nil {
		return nil, p.micErr
	}
	mic := capture.NewPCMTrack(capture.KindMicrophone, capture.DefaultAudioSettings, silence{}, nil)
	p.keep(mic)
	return mic, nil
}

func (p *fakeProvider) liveTracks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.tracks {
		if t.Live() {
			n++
		}
	}
	return n
}

func (p *fakeProvider) currentScreen() *capture.FrameTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screen
}

type silence struct{}

func (silence) Read(b []byte) (int, error) {
	time.Sleep(2 * time.Millisecond)
	for i := range b {
		b[i] = 0
	}
	return len(b), nil
}

// nullSurface draws nothing.
type nullSurface struct{ w, h int }

func (s *nullSurface) Size() (int, int)                                 { return s.w, s.h }
func (s *nullSurface) DrawFrame(image.Image)                            {}
func (s *nullSurface) DrawCircleImage(image.Image, compositor.Circle)   {}
func (s *nullSurface) StrokeCircle(compositor.Circle, float64, string) {}
func (s *nullSurface) Snapshot(*image.RGBA)                             {}
func (s *nullSurface) Close() error                                     { return nil }

func nullSurfaceFactory(w, h int) (compositor.Surface, error) {
	return &nullSurface{w: w, h: h}, nil
}

var liveEncoders atomic.Int64

// fakeEncoder emits a header chunk on start and a tail chunk on stop.
type fakeEncoder struct {
	mu       sync.Mutex
	sink     encoder.Sink
	seq      int
	paused   bool
	stops    int
	stopErr  error
	startErr error
	failed   chan error
	drained  chan struct{}
	stopOnce sync.Once
	stream   *compositor.Stream
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{failed: make(chan error, 1), drained: make(chan struct{})}
}

func (e *fakeEncoder) Start(ctx context.Context, stream *compositor.Stream, sink encoder.Sink) error {
	if e.startErr != nil {
		return e.startErr
	}
	liveEncoders.Add(1)
	e.sink = sink
	e.stream = stream
	go func() {
		defer close(e.drained)
		for img := range stream.Video.Frames() {
			stream.Video.Recycle(img)
		}
	}()
	e.emit([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x01})
	return nil
}

func (e *fakeEncoder) emit(data []byte) {
	e.mu.Lock()
	c := encoder.Chunk{Seq: e.seq, Data: data}
	e.seq++
	e.mu.Unlock()
	e.sink(c)
}

func (e *fakeEncoder) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *fakeEncoder) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

func (e *fakeEncoder) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *fakeEncoder) Stop() error {
	e.mu.Lock()
	e.stops++
	e.mu.Unlock()
	e.stopOnce.Do(func() {
		<-e.drained
		e.emit([]byte{0x02, 0x03})
		liveEncoders.Add(-1)
	})
	return e.stopErr
}

func (e *fakeEncoder) stopCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

func (e *fakeEncoder) Failed() <-chan error { return e.failed }
func (e *fakeEncoder) MimeType() string     { return "video/webm" }

// encoderSet hands out fake encoders and keeps them for inspection.
type encoderSet struct {
	mu       sync.Mutex
	all      []*fakeEncoder
	startErr error
}

func (s *encoderSet) factory() encoder.Encoder {
	e := newFakeEncoder()
	s.mu.Lock()
	e.startErr = s.startErr
	s.all = append(s.all, e)
	s.mu.Unlock()
	return e
}

func (s *encoderSet) last() *fakeEncoder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.all) == 0 {
		return nil
	}
	return s.all[len(s.all)-1]
}

// fakeUploader returns queued results in order; once the queue is empty
// every call succeeds.
type fakeUploader struct {
	mu       sync.Mutex
	errs     []error
	blobs    [][]byte
	names    []string
	progress []float64
	block    bool
	started  chan struct{}
}

func newFakeUploader(errs ...error) *fakeUploader {
	return &fakeUploader{errs: errs, started: make(chan struct{}, 8)}
}

func (u *fakeUploader) Upload(ctx context.Context, blob []byte, filename string, duration float64, onProgress upload.ProgressFunc) (*upload.Result, error) {
	u.mu.Lock()
	u.blobs = append(u.blobs, blob)
	u.names = append(u.names, filename)
	var err error
	if len(u.errs) > 0 {
		err, u.errs = u.errs[0], u.errs[1:]
	}
	block := u.block
	u.mu.Unlock()
	u.started <- struct{}{}

	if block {
		<-ctx.Done()
		return nil, upload.ErrCanceled
	}
	if err != nil {
		return nil, err
	}
	for _, pct := range u.progress {
		onProgress(upload.Progress{Loaded: int64(pct), Total: 100, Percentage: pct})
	}
	onProgress(upload.Progress{Loaded: 100, Total: 100, Percentage: 100})
	return &upload.Result{RemoteID: "remote-1", Link: "https://share.example.com/remote-1"}, nil
}

func (u *fakeUploader) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.blobs)
}

type fakeAuth struct {
	mu          sync.Mutex
	err         error
	invalidated int
	calls       int
}

func (a *fakeAuth) Reauthenticate(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return "fresh", nil
}

func (a *fakeAuth) Invalidate() {
	a.mu.Lock()
	a.invalidated++
	a.mu.Unlock()
}

type savedMetadata struct {
	userID, title, link, remoteID string
	duration                      float64
}

type fakeMetadata struct {
	mu      sync.Mutex
	saved   []savedMetadata
	posters map[string]image.Image
}

func (f *fakeMetadata) SaveRecordingMetadata(ctx context.Context, userID, title, link, remoteID string, duration float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedMetadata{userID, title, link, remoteID, duration})
	return "rec-1", nil
}

func (f *fakeMetadata) SavePoster(id string, img image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posters == nil {
		f.posters = map[string]image.Image{}
	}
	f.posters[id] = img
	return nil
}

type harness struct {
	m        *Machine
	clock    *fakeClock
	provider *fakeProvider
	encoders *encoderSet
	uploader *fakeUploader
	auth     *fakeAuth
	meta     *fakeMetadata

	compTimers int64
	mixGraphs  int64
	recTimers  int64
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		clock:      newFakeClock(),
		provider:   &fakeProvider{system: true},
		encoders:   &encoderSet{},
		uploader:   newFakeUploader(),
		auth:       &fakeAuth{},
		meta:       &fakeMetadata{},
		compTimers: compositor.ActiveTimers(),
		mixGraphs:  compositor.OpenMixGraphs(),
		recTimers:  ActiveTimers(),
	}
	cfg := Config{
		Acquirer:          capture.NewAcquirer(h.provider),
		Compositor:        compositor.Config{NewSurface: nullSurfaceFactory},
		Encoders:          h.encoders.factory,
		Uploader:          h.uploader,
		Auth:              h.auth,
		Metadata:          h.meta,
		Posters:           h.meta,
		UserID:            "user-1",
		CountdownInterval: time.Hour,
		TickInterval:      time.Hour,
		Now:               h.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.m = New(cfg)
	t.Cleanup(h.m.Close)
	return h
}

// record starts a session and skips the countdown.
func (h *harness) record(t *testing.T, opts capture.Options) {
	t.Helper()
	if err := h.m.Start(context.Background(), opts); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.m.SkipCountdown(); err != nil {
		t.Fatalf("SkipCountdown() error = %v", err)
	}
}

// assertReleased checks that no track, timer, mix graph or encoder is live.
func (h *harness) assertReleased(t *testing.T) {
	t.Helper()
	waitFor(t, "resources released", func() bool {
		return h.provider.liveTracks() == 0 &&
			compositor.ActiveTimers() == h.compTimers &&
			compositor.OpenMixGraphs() == h.mixGraphs &&
			ActiveTimers() == h.recTimers &&
			liveEncoders.Load() == 0
	})
}

func (h *harness) waitPhase(t *testing.T, phase Phase) Snapshot {
	t.Helper()
	var snap Snapshot
	waitFor(t, "phase "+string(phase), func() bool {
		snap = h.m.Snapshot()
		return snap.Phase == phase && !snap.Stopping
	})
	return snap
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
