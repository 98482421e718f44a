package capture

import (
	"image"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Kind identifies the device class a track was captured from.
type Kind string

const (
	KindScreen      Kind = "screen"
	KindSystemAudio Kind = "system-audio"
	KindCamera      Kind = "camera"
	KindMicrophone  Kind = "microphone"
)

// VideoSettings are the negotiated properties of a video track.
type VideoSettings struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frameRate"`
}

// AudioSettings describe the PCM layout produced by an audio track.
type AudioSettings struct {
	SampleRate int `json:"sampleRate"`
	Channels   int `json:"channels"`
}

// DefaultAudioSettings is the layout every provider normalises to.
var DefaultAudioSettings = AudioSettings{SampleRate: 48000, Channels: 2}

// Track is a live capture handle.
type Track interface {
	ID() string
	Kind() Kind
	// Stop releases the underlying device. Safe to call more than once.
	Stop()
	// Ended is closed when the track stops for any reason.
	Ended() <-chan struct{}
	Live() bool
}

// VideoTrack publishes frames from a video device.
type VideoTrack interface {
	Track
	Settings() VideoSettings
	// ReadFrame calls fn with the most recent frame while holding it stable.
	// It returns false when no frame has arrived yet or the track has ended.
	ReadFrame(fn func(frame image.Image)) bool
}

// AudioTrack is a reader of interleaved s16le PCM.
type AudioTrack interface {
	Track
	io.Reader
	Settings() AudioSettings
}

// baseTrack implements the lifecycle half of Track.
type baseTrack struct {
	id     string
	kind   Kind
	ended  chan struct{}
	once   sync.Once
	onStop func()
}

func newBaseTrack(kind Kind, onStop func()) *baseTrack {
	return &baseTrack{
		id:     uuid.NewString(),
		kind:   kind,
		ended:  make(chan struct{}),
		onStop: onStop,
	}
}

func (t *baseTrack) ID() string             { return t.id }
func (t *baseTrack) Kind() Kind             { return t.kind }
func (t *baseTrack) Ended() <-chan struct{} { return t.ended }

func (t *baseTrack) Live() bool {
	select {
	case <-t.ended:
		return false
	default:
		return true
	}
}

func (t *baseTrack) Stop() {
	t.once.Do(func() {
		close(t.ended)
		if t.onStop != nil {
			t.onStop()
		}
	})
}

// FrameTrack is an in-memory VideoTrack whose frame is set by its producer.
// Device readers and the synthetic provider build on it; tests use it as a
// fake camera or screen.
type FrameTrack struct {
	*baseTrack

	mu       sync.RWMutex
	settings VideoSettings
	frame    image.Image
}

// NewFrameTrack creates a video track with the given negotiated settings.
func NewFrameTrack(kind Kind, settings VideoSettings, onStop func()) *FrameTrack {
	return &FrameTrack{
		baseTrack: newBaseTrack(kind, onStop),
		settings:  settings,
	}
}

// Settings returns the negotiated settings.
func (t *FrameTrack) Settings() VideoSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings
}

// SetFrame publishes a new frame. The caller must not mutate img afterwards.
func (t *FrameTrack) SetFrame(img image.Image) {
	t.mu.Lock()
	t.frame = img
	t.mu.Unlock()
}

// swap publishes back and returns the previously published frame so a
// producer can reuse its buffer. Readers holding the read lock delay the swap.
func (t *FrameTrack) swap(back image.Image) image.Image {
	t.mu.Lock()
	prev := t.frame
	t.frame = back
	t.mu.Unlock()
	return prev
}

// ReadFrame implements VideoTrack.
func (t *FrameTrack) ReadFrame(fn func(frame image.Image)) bool {
	if !t.Live() {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.frame == nil {
		return false
	}
	fn(t.frame)
	return true
}

// PCMTrack adapts a PCM reader into an AudioTrack. Reads after Stop return io.EOF.
type PCMTrack struct {
	*baseTrack
	settings AudioSettings
	r        io.Reader
}

// NewPCMTrack wraps r, which must yield s16le samples in the given layout.
func NewPCMTrack(kind Kind, settings AudioSettings, r io.Reader, onStop func()) *PCMTrack {
	return &PCMTrack{
		baseTrack: newBaseTrack(kind, onStop),
		settings:  settings,
		r:         r,
	}
}

// Settings returns the PCM layout.
func (t *PCMTrack) Settings() AudioSettings { return t.settings }

// Read implements io.Reader.
func (t *PCMTrack) Read(p []byte) (int, error) {
	if !t.Live() {
		return 0, io.EOF
	}
	return t.r.Read(p)
}
