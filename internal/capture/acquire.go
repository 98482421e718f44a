package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"screen-recorder/internal/logging"
)

// Sentinel errors for device acquisition.
var (
	// ErrPermissionDenied means the user or the platform refused a capture
	// permission. For the screen this is terminal for the attempt.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrDeviceUnavailable means the device could not be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// Constraints are the advisory properties requested for the screen.
// The track's Settings report what was actually negotiated.
type Constraints struct {
	Width     int
	Height    int
	FrameRate int
}

// DefaultScreenConstraints asks for 1080p at 30fps.
var DefaultScreenConstraints = Constraints{Width: 1920, Height: 1080, FrameRate: 30}

// Options are chosen by the user in the setup phase.
type Options struct {
	Mic    bool `json:"mic"`
	Camera bool `json:"camera"`
}

// Provider opens individual devices.
type Provider interface {
	// Screen returns the screen video track and, when the platform offers
	// it, the system audio track (nil otherwise).
	Screen(ctx context.Context, c Constraints) (VideoTrack, AudioTrack, error)
	Camera(ctx context.Context) (VideoTrack, error)
	Microphone(ctx context.Context) (AudioTrack, error)
}

// SourceSet holds every live track for one session. It is owned by exactly
// one session and never shared.
type SourceSet struct {
	Screen      VideoTrack
	SystemAudio AudioTrack
	Camera      VideoTrack
	Mic         AudioTrack

	// Warnings lists optional sources that could not be acquired.
	Warnings []string

	stopOnce sync.Once
}

// Tracks returns the non-nil tracks in acquisition order.
func (s *SourceSet) Tracks() []Track {
	var tracks []Track
	if s.Screen != nil {
		tracks = append(tracks, s.Screen)
	}
	if s.SystemAudio != nil {
		tracks = append(tracks, s.SystemAudio)
	}
	if s.Camera != nil {
		tracks = append(tracks, s.Camera)
	}
	if s.Mic != nil {
		tracks = append(tracks, s.Mic)
	}
	return tracks
}

// LiveCount returns how many tracks are still live.
func (s *SourceSet) LiveCount() int {
	n := 0
	for _, t := range s.Tracks() {
		if t.Live() {
			n++
		}
	}
	return n
}

// Stop stops every track. Repeated calls are no-ops.
func (s *SourceSet) Stop() {
	s.stopOnce.Do(func() {
		for _, t := range s.Tracks() {
			t.Stop()
		}
		logging.Debug("Released capture sources")
	})
}

// Acquirer turns user options into a SourceSet.
type Acquirer struct {
	provider    Provider
	constraints Constraints
}

// NewAcquirer creates an acquirer that requests the default screen constraints.
func NewAcquirer(provider Provider) *Acquirer {
	return &Acquirer{provider: provider, constraints: DefaultScreenConstraints}
}

// Acquire requests the screen first and then the optional sources. A screen
// failure aborts and returns the error unchanged so callers can match
// ErrPermissionDenied or ErrDeviceUnavailable. Optional failures only add a
// warning.
func (a *Acquirer) Acquire(ctx context.Context, opts Options) (*SourceSet, error) {
	screen, systemAudio, err := a.provider.Screen(ctx, a.constraints)
	if err != nil {
		return nil, fmt.Errorf("screen capture: %w", err)
	}

	set := &SourceSet{Screen: screen, SystemAudio: systemAudio}
	settings := screen.Settings()
	logging.Info("Screen acquired: %dx%d @ %.0ffps (system audio: %v)",
		settings.Width, settings.Height, settings.FrameRate, systemAudio != nil)

	if opts.Camera {
		cam, err := a.provider.Camera(ctx)
		if err != nil {
			logging.Warn("Camera unavailable, continuing without it: %v", err)
			set.Warnings = append(set.Warnings, fmt.Sprintf("camera: %v", err))
		} else {
			set.Camera = cam
		}
	}

	if opts.Mic {
		mic, err := a.provider.Microphone(ctx)
		if err != nil {
			logging.Warn("Microphone unavailable, continuing without it: %v", err)
			set.Warnings = append(set.Warnings, fmt.Sprintf("microphone: %v", err))
		} else {
			set.Mic = mic
		}
	}

	// Release anything granted before a cancel.
	if err := ctx.Err(); err != nil {
		set.Stop()
		return nil, err
	}

	return set, nil
}
