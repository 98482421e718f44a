package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"
)

// SyntheticConfig controls the generated sources.
type SyntheticConfig struct {
	Width       int
	Height      int
	FrameRate   int
	Camera      bool
	Microphone  bool
	SystemAudio bool
	ToneHz      float64
}

// DefaultSyntheticConfig generates a 1280x720 screen and every optional source.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Width:       1280,
		Height:      720,
		FrameRate:   30,
		Camera:      true,
		Microphone:  true,
		SystemAudio: true,
		ToneHz:      440,
	}
}

// SyntheticProvider produces moving colour bars and a sine tone without any
// hardware. Sources that are disabled in the config fail with
// ErrDeviceUnavailable, which exercises the degraded paths.
type SyntheticProvider struct {
	config SyntheticConfig
}

// NewSyntheticProvider creates a provider with the given config.
func NewSyntheticProvider(config SyntheticConfig) *SyntheticProvider {
	if config.FrameRate <= 0 {
		config.FrameRate = 30
	}
	if config.ToneHz <= 0 {
		config.ToneHz = 440
	}
	return &SyntheticProvider{config: config}
}

// Screen implements Provider.
func (p *SyntheticProvider) Screen(_ context.Context, c Constraints) (VideoTrack, AudioTrack, error) {
	w, h := p.config.Width, p.config.Height
	// The requested size is an upper bound, like a real display.
	if c.Width > 0 && w > c.Width {
		w = c.Width
	}
	if c.Height > 0 && h > c.Height {
		h = c.Height
	}
	video := p.pattern(KindScreen, w, h, colourBars)

	if !p.config.SystemAudio {
		return video, nil, nil
	}
	return video, p.tone(KindSystemAudio, p.config.ToneHz), nil
}

// Camera implements Provider.
func (p *SyntheticProvider) Camera(_ context.Context) (VideoTrack, error) {
	if !p.config.Camera {
		return nil, fmt.Errorf("%w: synthetic camera disabled", ErrDeviceUnavailable)
	}
	return p.pattern(KindCamera, 640, 480, gradient), nil
}

// Microphone implements Provider.
func (p *SyntheticProvider) Microphone(_ context.Context) (AudioTrack, error) {
	if !p.config.Microphone {
		return nil, fmt.Errorf("%w: synthetic microphone disabled", ErrDeviceUnavailable)
	}
	return p.tone(KindMicrophone, p.config.ToneHz*1.5), nil
}

type painter func(img *image.RGBA, frame int)

func (p *SyntheticProvider) pattern(kind Kind, w, h int, paint painter) *FrameTrack {
	stop := make(chan struct{})
	var once sync.Once
	track := NewFrameTrack(kind, VideoSettings{Width: w, Height: h, FrameRate: float64(p.config.FrameRate)},
		func() { once.Do(func() { close(stop) }) })

	first := image.NewRGBA(image.Rect(0, 0, w, h))
	paint(first, 0)
	track.SetFrame(first)

	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(p.config.FrameRate))
		defer ticker.Stop()
		back := image.NewRGBA(image.Rect(0, 0, w, h))
		for n := 1; ; n++ {
			select {
			case <-ticker.C:
				paint(back, n)
				if prev, ok := track.swap(back).(*image.RGBA); ok {
					back = prev
				}
			case <-stop:
				return
			}
		}
	}()
	return track
}

func colourBars(img *image.RGBA, frame int) {
	bars := []color.RGBA{
		{192, 192, 192, 255}, {192, 192, 0, 255}, {0, 192, 192, 255}, {0, 192, 0, 255},
		{192, 0, 192, 255}, {192, 0, 0, 255}, {0, 0, 192, 255},
	}
	b := img.Bounds()
	width := b.Dx()
	offset := (frame * 4) % width
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			idx := ((x + offset) % width) * len(bars) / width
			img.SetRGBA(x, y, bars[idx])
		}
	}
}

func gradient(img *image.RGBA, frame int) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / b.Dx()),
				G: uint8(y * 255 / b.Dy()),
				B: uint8(frame % 256),
				A: 255,
			})
		}
	}
}

func (p *SyntheticProvider) tone(kind Kind, hz float64) *PCMTrack {
	r := &toneReader{hz: hz, settings: DefaultAudioSettings, start: time.Now()}
	return NewPCMTrack(kind, DefaultAudioSettings, r, nil)
}

// toneReader yields a sine wave paced to wall-clock time.
type toneReader struct {
	hz       float64
	settings AudioSettings
	start    time.Time
	produced int64
}

func (t *toneReader) Read(p []byte) (int, error) {
	frameSize := 2 * t.settings.Channels
	for {
		due := int64(time.Since(t.start).Seconds()*float64(t.settings.SampleRate)) - t.produced
		if due > 0 {
			frames := int(due)
			if limit := len(p) / frameSize; frames > limit {
				frames = limit
			}
			for i := 0; i < frames; i++ {
				phase := 2 * math.Pi * t.hz * float64(t.produced+int64(i)) / float64(t.settings.SampleRate)
				sample := int16(math.Sin(phase) * 0.2 * math.MaxInt16)
				for c := 0; c < t.settings.Channels; c++ {
					binary.LittleEndian.PutUint16(p[i*frameSize+2*c:], uint16(sample))
				}
			}
			t.produced += int64(frames)
			return frames * frameSize, nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}
