package recorder

import (
	"context"
	"errors"
	"fmt"
	"image"

	"screen-recorder/internal/logging"
	"screen-recorder/internal/upload"
)

// Upload assembles the recording and uploads it in the background. title
// replaces the pre-filled title when not empty.
func (m *Machine) Upload(title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhasePreview {
		return ErrInvalidTransition
	}
	if title != "" {
		s.title = title
	}
	logging.Info("Session %s: uploading %q", s.ID, s.title)
	m.startUploadLocked(s)
	return nil
}

// Retry uploads the retained recording again after a recoverable failure.
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhaseError || !s.errClass.Retryable() || s.awaitingAuth {
		return ErrInvalidTransition
	}
	m.startUploadLocked(s)
	return nil
}

// Reauthenticate asks the credential provider for a new token and, once it
// arrives, uploads the same recording again. It returns immediately; the
// session reports awaitingAuth until the provider answers.
func (m *Machine) Reauthenticate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhaseError || s.errClass != ClassUnauthorized || m.cfg.Auth == nil {
		return ErrInvalidTransition
	}
	if s.awaitingAuth {
		return nil
	}
	s.awaitingAuth = true
	m.notifyLocked()

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		_, err := m.cfg.Auth.Reauthenticate(m.ctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.s != s || s.phase != PhaseError {
			return
		}
		s.awaitingAuth = false
		if err != nil {
			logging.Warn("Session %s: re-authentication failed: %v", s.ID, err)
			s.err = fmt.Errorf("re-authentication failed: %w", err)
			m.notifyLocked()
			return
		}
		logging.Info("Session %s: re-authenticated, resuming upload", s.ID)
		m.startUploadLocked(s)
	}()
	return nil
}

// CancelUpload aborts the transfer and returns to preview with the
// recording kept.
func (m *Machine) CancelUpload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	if s.phase != PhaseProcessing || s.uploadCancel == nil {
		return ErrInvalidTransition
	}
	s.uploadCanceled = true
	s.uploadCancel()
	return nil
}

func (m *Machine) startUploadLocked(s *Session) {
	s.err, s.errClass, s.remediation = nil, ClassNone, ""
	s.progress = 0
	s.uploadCanceled = false
	ctx, cancel := context.WithCancel(m.ctx)
	s.uploadCancel = cancel
	m.setPhaseLocked(s, PhaseProcessing)
	m.notifyLocked()

	m.bg.Add(1)
	go m.runUpload(ctx, s)
}

func (m *Machine) runUpload(ctx context.Context, s *Session) {
	defer m.bg.Done()

	m.mu.Lock()
	if s.blob == nil {
		blob, err := Assemble(s.takeChunks())
		if err != nil {
			m.finishUploadLocked(s, nil, err)
			m.mu.Unlock()
			return
		}
		s.blob = blob
	}
	blob := s.blob
	filename := s.title + ".webm"
	duration := s.duration.Seconds()
	s.progress = prepareShare
	m.notifyLocked()
	m.mu.Unlock()

	res, err := m.cfg.Uploader.Upload(ctx, blob, filename, duration, func(p upload.Progress) {
		m.uploadProgress(s, p)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishUploadLocked(s, res, err)
}

// uploadProgress maps transfer progress onto the 5-100 display range.
func (m *Machine) uploadProgress(s *Session, p upload.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s != s || s.phase != PhaseProcessing {
		return
	}
	v := prepareShare + (100-prepareShare)*p.Percentage/100
	if v > s.progress {
		s.progress = v
		m.notifyLocked()
	}
}

func (m *Machine) finishUploadLocked(s *Session, res *upload.Result, err error) {
	if s.uploadCancel != nil {
		s.uploadCancel()
		s.uploadCancel = nil
	}
	if m.s != s || s.phase != PhaseProcessing {
		return
	}

	if err == nil {
		s.result = res
		s.progress = 100
		title, duration, poster := s.title, s.duration.Seconds(), s.poster
		s.clearMedia()
		m.setPhaseLocked(s, PhaseComplete)
		logging.Info("Session %s: uploaded as %s", s.ID, res.RemoteID)
		m.notifyLocked()
		m.saveMetadata(s, res, title, duration, poster)
		return
	}

	if s.uploadCanceled || errors.Is(err, upload.ErrCanceled) {
		logging.Info("Session %s: upload canceled", s.ID)
		s.progress = 0
		m.setPhaseLocked(s, PhasePreview)
		m.notifyLocked()
		return
	}

	class := Classify(err)
	s.err, s.errClass = err, class
	var disabled *upload.ServiceDisabledError
	if errors.As(err, &disabled) {
		s.remediation = disabled.URL
	}
	if class == ClassUnauthorized && m.cfg.Auth != nil {
		m.cfg.Auth.Invalidate()
	}
	if !class.Retryable() {
		s.clearMedia()
	}
	logging.Warn("Session %s: upload failed (%s): %v", s.ID, class, err)
	m.setPhaseLocked(s, PhaseError)
	m.notifyLocked()
}

// saveMetadata records the upload without blocking the session. A failure
// is logged and does not affect the completed upload.
func (m *Machine) saveMetadata(s *Session, res *upload.Result, title string, duration float64, poster image.Image) {
	if m.cfg.Metadata == nil {
		return
	}

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.MetadataTimeout)
		defer cancel()

		id, err := m.cfg.Metadata.SaveRecordingMetadata(ctx, m.cfg.UserID, title, res.Link, res.RemoteID, duration)
		if err != nil {
			logging.Warn("Session %s: failed to save recording metadata: %v", s.ID, err)
			return
		}
		if m.cfg.Posters != nil && poster != nil {
			if err := m.cfg.Posters.SavePoster(id, poster); err != nil {
				logging.Warn("Session %s: failed to save poster: %v", s.ID, err)
			}
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.s == s {
			s.recordingID = id
			m.notifyLocked()
		}
	}()
}
