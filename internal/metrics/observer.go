package metrics

import (
	"screen-recorder/internal/auth"
	"screen-recorder/internal/compositor"
	"screen-recorder/internal/filesystem"
	"screen-recorder/internal/recorder"
	"screen-recorder/internal/upload"
)

// compositorObserver implements compositor.Observer.
type compositorObserver struct{}

// NewCompositorObserver creates an observer that records draw loop metrics.
func NewCompositorObserver() compositor.Observer {
	return &compositorObserver{}
}

func (o *compositorObserver) ObserveFrame(durationSeconds float64) {
	CompositorFramesTotal.Inc()
	CompositorFrameDuration.Observe(durationSeconds)
}

func (o *compositorObserver) ObserveDroppedFrame() {
	CompositorFramesDropped.Inc()
}

// uploadObserver implements upload.Observer.
type uploadObserver struct{}

// NewUploadObserver creates an observer that records upload metrics.
func NewUploadObserver() upload.Observer {
	return &uploadObserver{}
}

func (o *uploadObserver) ObserveUpload(backend, result string, bytes int64, durationSeconds float64) {
	UploadsTotal.WithLabelValues(backend, result).Inc()
	if result == "success" {
		UploadBytesTotal.WithLabelValues(backend).Add(float64(bytes))
		UploadDuration.WithLabelValues(backend).Observe(durationSeconds)
	}
}

func (o *uploadObserver) ObserveShareFailure(backend string) {
	UploadShareFailures.WithLabelValues(backend).Inc()
}

// recorderObserver implements recorder.Observer.
type recorderObserver struct{}

// NewRecorderObserver creates an observer that records session metrics.
func NewRecorderObserver() recorder.Observer {
	return &recorderObserver{}
}

func (o *recorderObserver) ObserveTransition(from, to recorder.Phase) {
	SessionTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	if to.Live() {
		SessionsActive.Set(1)
	} else {
		SessionsActive.Set(0)
	}
}

func (o *recorderObserver) ObserveChunk(bytes int) {
	EncoderChunksTotal.Inc()
	EncoderBytesTotal.Add(float64(bytes))
}

// authObserver implements auth.Observer.
type authObserver struct{}

// NewAuthObserver creates an observer that records re-authentication results.
func NewAuthObserver() auth.Observer {
	return &authObserver{}
}

func (o *authObserver) ObserveReauth(result string) {
	AuthReauthTotal.WithLabelValues(result).Inc()
}

// filesystemObserver implements filesystem.Observer.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records cache file metrics.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveOperation(volume, operation string, durationSeconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(durationSeconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
	}
}

func (o *filesystemObserver) ObserveRetryAttempt(operation, volume string) {
	FilesystemRetriesTotal.WithLabelValues(operation, volume, "attempt").Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(operation, volume string) {
	FilesystemRetriesTotal.WithLabelValues(operation, volume, "success").Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(operation, volume string) {
	FilesystemRetriesTotal.WithLabelValues(operation, volume, "failure").Inc()
}

func (o *filesystemObserver) ObserveTransientError(operation, volume string) {
	FilesystemTransientErrors.WithLabelValues(operation, volume).Inc()
}
