// Package encoder turns a composed stream into WebM chunks.
//
// FFmpegEncoder runs ffmpeg as a child process: raw RGBA frames go in on
// stdin, interleaved s16le PCM on an extra pipe (fd 3), and VP9/Opus WebM
// comes out on stdout. The output is cut into chunks roughly once a second
// and handed to a Sink in order. While paused, incoming frames and samples
// are discarded, so the paused interval is absent from the recording.
//
// Stop waits for the inputs to drain, flushes the last partial chunk and
// reaps the process. Like the other process managers in this module, active
// processes are tracked so Cleanup can kill them on shutdown.
package encoder
