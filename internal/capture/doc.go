// Package capture acquires the live media sources for one recording session:
// the screen (mandatory, with optional system audio), the camera and the
// microphone.
//
// Sources are exposed as tracks. A VideoTrack publishes its most recent frame
// and the settings that were actually negotiated with the device; an
// AudioTrack is an io.Reader of interleaved signed 16-bit little-endian PCM.
// Every track can be stopped any number of times and reports its end through
// the Ended channel, which is how a revoked screen share reaches the recorder.
//
// Acquirer.Acquire requests the screen first and fails the whole attempt if
// it cannot be obtained. Camera and microphone failures are logged, recorded
// as warnings on the SourceSet, and the session continues without them.
//
// Two providers ship with the package: FFmpegProvider, which reads raw frames
// and samples from ffmpeg device inputs (x11grab/v4l2/pulse on Linux,
// avfoundation on macOS), and SyntheticProvider, which generates a test
// pattern and a tone for demos and smoke tests.
package capture
