package recorder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"screen-recorder/internal/capture"
	"screen-recorder/internal/compositor"
	"screen-recorder/internal/encoder"
	"screen-recorder/internal/logging"
	"screen-recorder/internal/upload"
)

// Defaults for Config.
const (
	DefaultCountdownFrom     = 3
	DefaultCountdownInterval = time.Second
	DefaultTickInterval      = time.Second
	DefaultMetadataTimeout   = 10 * time.Second

	// prepareShare is the share of displayed progress reserved for
	// assembling the recording before the transfer starts.
	prepareShare = 5.0
)

// Acquirer opens the capture sources for a session.
type Acquirer interface {
	Acquire(ctx context.Context, opts capture.Options) (*capture.SourceSet, error)
}

// Uploader transfers a finished recording. Canceling ctx aborts the transfer.
type Uploader interface {
	Upload(ctx context.Context, blob []byte, filename string, duration float64, onProgress upload.ProgressFunc) (*upload.Result, error)
}

// Authenticator re-acquires the storage credential on user request.
type Authenticator interface {
	Reauthenticate(ctx context.Context) (string, error)
	Invalidate()
}

// MetadataStore records successful uploads.
type MetadataStore interface {
	SaveRecordingMetadata(ctx context.Context, userID, title, link, remoteID string, duration float64) (string, error)
}

// PosterStore keeps the last composed frame of a recording.
type PosterStore interface {
	SavePoster(recordingID string, img image.Image) error
}

// Config wires a Machine to its collaborators.
type Config struct {
	Acquirer   Acquirer
	Compositor compositor.Config
	Encoders   encoder.Factory
	Uploader   Uploader
	Auth       Authenticator
	Metadata   MetadataStore
	Posters    PosterStore
	UserID     string

	CountdownFrom     int
	CountdownInterval time.Duration
	TickInterval      time.Duration
	MetadataTimeout   time.Duration

	// Now is the clock; tests replace it.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.CountdownFrom < 0 {
		c.CountdownFrom = 0
	}
	if c.CountdownInterval <= 0 {
		c.CountdownInterval = DefaultCountdownInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.MetadataTimeout <= 0 {
		c.MetadataTimeout = DefaultMetadataTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Machine runs one recording session at a time.
type Machine struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	s         *Session
	acquiring bool
	closed    bool
	subs      map[int]chan Snapshot
	nextSub   int

	bg sync.WaitGroup
}

// New creates a machine in the setup phase. A zero CountdownFrom in cfg
// means the default of three ticks; use a negative value to skip the
// countdown entirely.
func New(cfg Config) *Machine {
	if cfg.CountdownFrom == 0 {
		cfg.CountdownFrom = DefaultCountdownFrom
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		cfg:    cfg.withDefaults(),
		ctx:    ctx,
		cancel: cancel,
		s:      newSession(),
		subs:   make(map[int]chan Snapshot),
	}
}

func (m *Machine) now() time.Time { return m.cfg.Now() }

func (m *Machine) setPhaseLocked(s *Session, to Phase) {
	from := s.phase
	if from == to {
		return
	}
	s.phase = to
	logging.Debug("Session %s: %s -> %s", s.ID, from, to)
	if o := defaultObserver; o != nil {
		o.ObserveTransition(from, to)
	}
}

// resetLocked replaces the session with a fresh one in setup, carrying err
// for display. The old session must already be released.
func (m *Machine) resetLocked(old *Session, err error) {
	old.clearMedia()
	next := newSession()
	next.options = old.options
	if err != nil {
		next.err = err
		next.errClass = Classify(err)
	}
	if o := defaultObserver; o != nil && old.phase != PhaseSetup {
		o.ObserveTransition(old.phase, PhaseSetup)
	}
	m.s = next
	m.notifyLocked()
}

// Start acquires the sources and enters the countdown. It blocks for as
// long as the device prompts do; ctx bounds that wait.
func (m *Machine) Start(ctx context.Context, opts capture.Options) error {
	m.mu.Lock()
	s := m.s
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrInvalidTransition
	case m.acquiring || s.phase.Live():
		m.mu.Unlock()
		return ErrSessionActive
	case s.phase != PhaseSetup:
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.acquiring = true
	s.options = opts
	s.err, s.errClass, s.warnings = nil, ClassNone, nil
	m.notifyLocked()
	m.mu.Unlock()

	set, err := m.cfg.Acquirer.Acquire(ctx, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquiring = false

	if m.s != s || m.closed {
		if set != nil {
			set.Stop()
		}
		return ErrInvalidTransition
	}
	if err != nil {
		logging.Warn("Session %s: capture failed: %v", s.ID, err)
		s.err, s.errClass = err, Classify(err)
		m.notifyLocked()
		return err
	}

	s.sources = set
	s.warnings = append(s.warnings, set.Warnings...)

	comp := compositor.New(set, m.cfg.Compositor)
	stream, err := comp.Start()
	if err != nil {
		err = fmt.Errorf("%w: compositor: %v", encoder.ErrEncoderFailure, err)
		_ = s.teardown()
		m.resetLocked(s, err)
		return err
	}
	s.comp, s.stream = comp, stream

	m.bg.Add(1)
	go m.watchScreen(s, set.Screen)

	if m.cfg.CountdownFrom <= 0 {
		return m.beginRecordingLocked(s)
	}

	s.countdown = m.cfg.CountdownFrom
	m.setPhaseLocked(s, PhaseCountdown)
	s.countdownTimer = startTicker(m.cfg.CountdownInterval, func() { m.countdownTick(s) })
	m.notifyLocked()
	return nil
}

func (m *Machine) countdownTick(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s != s || s.phase != PhaseCountdown {
		return
	}
	s.countdown--
	if s.countdown <= 0 {
		if err := m.beginRecordingLocked(s); err != nil {
			logging.Error("Session %s: failed to start encoder: %v", s.ID, err)
		}
		return
	}
	m.notifyLocked()
}

// SkipCountdown starts recording immediately.
func (m *Machine) SkipCountdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhaseCountdown {
		return ErrInvalidTransition
	}
	return m.beginRecordingLocked(s)
}

func (m *Machine) beginRecordingLocked(s *Session) error {
	s.countdownTimer.Stop()
	s.countdown = 0

	enc := m.cfg.Encoders()
	if err := enc.Start(m.ctx, s.stream, m.sink(s)); err != nil {
		err = fmt.Errorf("%w: %v", encoder.ErrEncoderFailure, err)
		// No encoder is attached yet, so teardown does not block.
		_ = s.teardown()
		m.resetLocked(s, err)
		return err
	}
	s.enc = enc
	s.startedAt = m.now()
	m.setPhaseLocked(s, PhaseRecording)
	s.durationTimer = startTicker(m.cfg.TickInterval, func() { m.durationTick(s) })

	m.bg.Add(1)
	go m.watchEncoder(s, enc)

	logging.Info("Session %s: recording (%s)", s.ID, enc.MimeType())
	m.notifyLocked()
	return nil
}

func (m *Machine) sink(s *Session) encoder.Sink {
	return func(c encoder.Chunk) {
		s.appendChunk(c)
		if o := defaultObserver; o != nil {
			o.ObserveChunk(len(c.Data))
		}
	}
}

func (m *Machine) durationTick(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == s && s.phase == PhaseRecording && !s.stopping {
		m.notifyLocked()
	}
}

// watchScreen stops the session when screen sharing ends from outside.
func (m *Machine) watchScreen(s *Session, screen capture.VideoTrack) {
	defer m.bg.Done()
	select {
	case <-screen.Ended():
	case <-s.done:
		return
	}

	m.mu.Lock()
	if m.s != s || s.stopping || s.deleted {
		m.mu.Unlock()
		return
	}
	phase := s.phase
	m.mu.Unlock()

	switch phase {
	case PhaseRecording, PhasePaused:
		logging.Info("Session %s: screen sharing ended, stopping", s.ID)
		if err := m.Stop(); err != nil {
			logging.Warn("Session %s: stop after screen end: %v", s.ID, err)
		}
	case PhaseCountdown:
		logging.Info("Session %s: screen sharing ended during countdown", s.ID)
		m.abort(s, ErrScreenEnded)
	}
}

// watchEncoder aborts the session if encoding fails on its own.
func (m *Machine) watchEncoder(s *Session, enc encoder.Encoder) {
	defer m.bg.Done()
	select {
	case err := <-enc.Failed():
		logging.Error("Session %s: encoder failed: %v", s.ID, err)
		m.abort(s, err)
	case <-s.done:
	}
}

// abort releases a live session and returns to setup with err.
func (m *Machine) abort(s *Session, err error) {
	m.mu.Lock()
	if m.s != s || !s.phase.Live() || s.stopping || s.deleted {
		m.mu.Unlock()
		return
	}
	s.stopping = true
	m.mu.Unlock()

	_ = s.teardown()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == s {
		m.resetLocked(s, err)
	}
}

// Pause suspends the encoder. Drawing continues.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhaseRecording || s.stopping {
		return ErrInvalidTransition
	}
	s.enc.Pause()
	s.pausedAt = m.now()
	m.setPhaseLocked(s, PhasePaused)
	m.notifyLocked()
	return nil
}

// Resume continues a paused recording.
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhasePaused || s.stopping {
		return ErrInvalidTransition
	}
	s.pausedTotal += m.now().Sub(s.pausedAt)
	s.pausedAt = time.Time{}
	s.enc.Resume()
	m.setPhaseLocked(s, PhaseRecording)
	m.notifyLocked()
	return nil
}

// Stop finalizes the recording and enters preview. Calling it again while
// stopping or after reaching preview does nothing.
func (m *Machine) Stop() error {
	m.mu.Lock()
	s := m.s
	switch {
	case s.stopping || s.phase == PhasePreview:
		m.mu.Unlock()
		return nil
	case s.phase != PhaseRecording && s.phase != PhasePaused:
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	s.stopping = true
	stoppedAt := m.now()
	s.freezeDuration(stoppedAt)
	s.durationTimer.Stop()
	m.notifyLocked()
	m.mu.Unlock()

	encErr := s.teardown()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s != s || s.deleted {
		return nil
	}
	s.stopping = false

	count, size := s.chunkStats()
	if encErr != nil {
		if count == 0 {
			m.resetLocked(s, encErr)
			return encErr
		}
		logging.Warn("Session %s: encoder finished with error: %v", s.ID, encErr)
		s.warnings = append(s.warnings, "encoder: "+encErr.Error())
	}

	if frame := s.comp.LastFrame(); frame != nil {
		s.poster = frame
	}
	s.title = DefaultTitle(stoppedAt)
	m.setPhaseLocked(s, PhasePreview)
	logging.Info("Session %s: stopped after %.1fs, %d chunks (%d bytes)",
		s.ID, s.duration.Seconds(), count, size)
	m.notifyLocked()
	return nil
}

// Delete abandons a live session immediately. Nothing is uploaded.
func (m *Machine) Delete() error {
	m.mu.Lock()
	s := m.s
	if !s.phase.Live() || s.deleted {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	s.deleted = true
	m.mu.Unlock()

	_ = s.teardown()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == s {
		logging.Info("Session %s: deleted", s.ID)
		m.resetLocked(s, nil)
	}
	return nil
}

// Discard drops a stopped recording from preview without any network call.
func (m *Machine) Discard() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhasePreview {
		return ErrInvalidTransition
	}
	logging.Info("Session %s: discarded", s.ID)
	m.resetLocked(s, nil)
	return nil
}

// SetTitle renames the recording while in preview.
func (m *Machine) SetTitle(title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhasePreview {
		return ErrInvalidTransition
	}
	s.title = title
	m.notifyLocked()
	return nil
}

// StartOver clears a finished or failed session and returns to setup.
func (m *Machine) StartOver() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhaseError && s.phase != PhaseComplete {
		return ErrInvalidTransition
	}
	m.resetLocked(s, nil)
	return nil
}

// Preview returns the assembled recording while in preview.
func (m *Machine) Preview() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhasePreview {
		return nil, ErrInvalidTransition
	}
	if s.blob == nil {
		blob, err := Assemble(s.takeChunks())
		if err != nil {
			return nil, err
		}
		s.blob = blob
	}
	return s.blob, nil
}

// Poster returns the last composed frame of a stopped recording.
func (m *Machine) Poster() image.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.poster
}

// Close releases the current session and waits for background work.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	s := m.s
	m.mu.Unlock()

	m.cancel()
	_ = s.teardown()
	m.bg.Wait()

	m.mu.Lock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.mu.Unlock()
	logging.Debug("Recorder closed")
}

// errorMessage is the user-facing text for err.
func errorMessage(err error) string {
	var disabled *upload.ServiceDisabledError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &disabled):
		return disabled.Message
	case errors.Is(err, capture.ErrPermissionDenied):
		return "Screen capture permission was denied."
	default:
		return err.Error()
	}
}
