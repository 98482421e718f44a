package recorder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"screen-recorder/internal/capture"
	"screen-recorder/internal/compositor"
	"screen-recorder/internal/encoder"
	"screen-recorder/internal/logging"
	"screen-recorder/internal/upload"
)

// ebmlMagic starts every WebM/Matroska stream.
var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// Session is the aggregate for one capture-to-upload cycle. Its fields are
// guarded by the owning Machine's mutex except where noted.
type Session struct {
	ID string

	phase     Phase
	options   capture.Options
	warnings  []string
	countdown int
	title     string

	sources *capture.SourceSet
	comp    *compositor.Compositor
	enc     encoder.Encoder
	stream  *compositor.Stream

	countdownTimer *ticker
	durationTimer  *ticker

	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	duration    time.Duration
	stopping    bool
	deleted     bool

	// chunkMu guards chunks; the encoder appends from its own goroutine.
	chunkMu sync.Mutex
	chunks  []encoder.Chunk

	blob     []byte
	poster   image.Image
	progress float64

	err         error
	errClass    ErrorClass
	remediation string

	awaitingAuth   bool
	uploadCancel   context.CancelFunc
	uploadCanceled bool
	result         *upload.Result
	recordingID    string

	teardownOnce sync.Once
	done         chan struct{}
}

func newSession() *Session {
	return &Session{
		ID:    uuid.NewString(),
		phase: PhaseSetup,
		done:  make(chan struct{}),
	}
}

// appendChunk is the encoder sink.
func (s *Session) appendChunk(c encoder.Chunk) {
	s.chunkMu.Lock()
	s.chunks = append(s.chunks, c)
	s.chunkMu.Unlock()
}

func (s *Session) chunkStats() (count int, size int64) {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	for _, c := range s.chunks {
		size += int64(len(c.Data))
	}
	return len(s.chunks), size
}

func (s *Session) takeChunks() []encoder.Chunk {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	return append([]encoder.Chunk(nil), s.chunks...)
}

func (s *Session) clearMedia() {
	s.chunkMu.Lock()
	s.chunks = nil
	s.chunkMu.Unlock()
	s.blob = nil
	s.poster = nil
}

// elapsed returns recorded time excluding pauses as of now.
func (s *Session) elapsed(now time.Time) time.Duration {
	switch {
	case s.startedAt.IsZero():
		return 0
	case s.phase == PhaseRecording && !s.stopping:
		return now.Sub(s.startedAt) - s.pausedTotal
	case s.phase == PhasePaused && !s.stopping:
		return s.pausedAt.Sub(s.startedAt) - s.pausedTotal
	default:
		return s.duration
	}
}

// freezeDuration fixes the final duration at stop time.
func (s *Session) freezeDuration(now time.Time) {
	if s.startedAt.IsZero() {
		return
	}
	if s.phase == PhasePaused {
		s.pausedTotal += now.Sub(s.pausedAt)
	}
	s.duration = now.Sub(s.startedAt) - s.pausedTotal
	if s.duration < 0 {
		s.duration = 0
	}
}

// teardown releases every live resource exactly once. Concurrent callers
// block until the first call finishes. It must be called without the
// Machine mutex held because the encoder drains its output.
func (s *Session) teardown() error {
	var encErr error
	s.teardownOnce.Do(func() {
		s.countdownTimer.Stop()
		s.durationTimer.Stop()

		// Compositor first so the encoder inputs reach end of stream.
		if s.comp != nil {
			s.comp.Stop()
		}
		if s.sources != nil {
			s.sources.Stop()
		}
		if s.enc != nil {
			encErr = s.enc.Stop()
		}
		close(s.done)
		logging.Debug("Session %s released", s.ID)
	})
	return encErr
}

// released reports whether teardown has completed.
func (s *Session) released() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Assemble joins chunks into one container. The chunks must be in
// collection order with consecutive sequence numbers starting at zero and
// the first must open the container; anything else is ErrCorruptRecording.
func Assemble(chunks []encoder.Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no data recorded", ErrCorruptRecording)
	}
	if !bytes.HasPrefix(chunks[0].Data, ebmlMagic) {
		return nil, fmt.Errorf("%w: missing container header", ErrCorruptRecording)
	}

	size := 0
	for i, c := range chunks {
		if c.Seq != i {
			return nil, fmt.Errorf("%w: chunk %d has sequence %d", ErrCorruptRecording, i, c.Seq)
		}
		size += len(c.Data)
	}

	blob := make([]byte, 0, size)
	for _, c := range chunks {
		blob = append(blob, c.Data...)
	}
	return blob, nil
}

// DefaultTitle is the pre-filled title for a recording stopped at t.
func DefaultTitle(t time.Time) string {
	return "Recording " + t.Format("2006-01-02 15:04:05")
}
