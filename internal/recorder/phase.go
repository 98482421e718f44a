package recorder

import (
	"errors"

	"screen-recorder/internal/auth"
	"screen-recorder/internal/capture"
	"screen-recorder/internal/encoder"
	"screen-recorder/internal/upload"
)

// Phase is a named state of the recording state machine.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseCountdown  Phase = "countdown"
	PhaseRecording  Phase = "recording"
	PhasePaused     Phase = "paused"
	PhasePreview    Phase = "preview"
	PhaseProcessing Phase = "processing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Live reports whether the phase holds capture resources.
func (p Phase) Live() bool {
	return p == PhaseCountdown || p == PhaseRecording || p == PhasePaused
}

// Sentinel errors returned by Machine operations.
var (
	// ErrInvalidTransition means the operation is not allowed in the
	// current phase.
	ErrInvalidTransition = errors.New("operation not allowed in the current phase")

	// ErrSessionActive means a session is already capturing.
	ErrSessionActive = errors.New("a recording session is already active")

	// ErrCorruptRecording means the collected chunks do not form one
	// ordered container.
	ErrCorruptRecording = errors.New("recording chunks are out of order or incomplete")

	// ErrScreenEnded is recorded when screen sharing stops before
	// recording begins.
	ErrScreenEnded = errors.New("screen sharing ended")
)

// ErrorClass drives which recovery controls the error phase offers.
type ErrorClass string

const (
	ClassNone              ErrorClass = ""
	ClassPermissionDenied  ErrorClass = "permission_denied"
	ClassDeviceUnavailable ErrorClass = "device_unavailable"
	ClassEncoderFailure    ErrorClass = "encoder_failure"
	ClassUnauthorized      ErrorClass = "unauthorized"
	ClassServiceDisabled   ErrorClass = "service_disabled"
	ClassNetwork           ErrorClass = "network"
)

// Classify maps an error onto its ErrorClass.
func Classify(err error) ErrorClass {
	var disabled *upload.ServiceDisabledError
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, upload.ErrUnauthorized), errors.Is(err, auth.ErrAuthTimeout):
		return ClassUnauthorized
	case errors.As(err, &disabled):
		return ClassServiceDisabled
	case errors.Is(err, capture.ErrPermissionDenied):
		return ClassPermissionDenied
	case errors.Is(err, capture.ErrDeviceUnavailable), errors.Is(err, ErrScreenEnded):
		return ClassDeviceUnavailable
	case errors.Is(err, encoder.ErrEncoderFailure), errors.Is(err, ErrCorruptRecording):
		return ClassEncoderFailure
	default:
		return ClassNetwork
	}
}

// Retryable reports whether the blob is kept after a failure of this class.
func (c ErrorClass) Retryable() bool {
	return c == ClassUnauthorized || c == ClassServiceDisabled
}

// Action is a control the UI may offer in a phase.
type Action string

const (
	ActionStart          Action = "start"
	ActionSkipCountdown  Action = "skip-countdown"
	ActionPause          Action = "pause"
	ActionResume         Action = "resume"
	ActionStop           Action = "stop"
	ActionDelete         Action = "delete"
	ActionUpload         Action = "upload"
	ActionDiscard        Action = "discard"
	ActionCancelUpload   Action = "cancel-upload"
	ActionReauthenticate Action = "reauthenticate"
	ActionRetry          Action = "retry"
	ActionStartOver      Action = "start-over"
)

// actions lists what is allowed in phase. The error phase always offers at
// least start-over.
func actions(phase Phase, class ErrorClass) []Action {
	switch phase {
	case PhaseSetup:
		return []Action{ActionStart}
	case PhaseCountdown:
		return []Action{ActionSkipCountdown, ActionDelete}
	case PhaseRecording:
		return []Action{ActionPause, ActionStop, ActionDelete}
	case PhasePaused:
		return []Action{ActionResume, ActionStop, ActionDelete}
	case PhasePreview:
		return []Action{ActionUpload, ActionDiscard}
	case PhaseProcessing:
		return []Action{ActionCancelUpload}
	case PhaseComplete:
		return []Action{ActionStartOver}
	case PhaseError:
		switch class {
		case ClassUnauthorized:
			return []Action{ActionReauthenticate, ActionStartOver}
		case ClassServiceDisabled:
			return []Action{ActionRetry, ActionStartOver}
		default:
			return []Action{ActionStartOver}
		}
	}
	return nil
}
