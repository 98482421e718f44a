package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"screen-recorder/internal/compositor"
	"screen-recorder/internal/logging"
	"screen-recorder/internal/workers"
)

// stopTimeout bounds how long Stop waits for ffmpeg to finish on its own.
const stopTimeout = 10 * time.Second

// Config configures FFmpegEncoder.
type Config struct {
	Binary        string
	VideoBitrate  string
	AudioBitrate  string
	Threads       int
	FlushInterval time.Duration
}

// DefaultConfig returns settings suitable for screen content.
func DefaultConfig() Config {
	return Config{
		Binary:        "ffmpeg",
		VideoBitrate:  "2500k",
		AudioBitrate:  "128k",
		Threads:       workers.EncoderThreads(),
		FlushInterval: DefaultFlushInterval,
	}
}

var (
	processMu sync.Mutex
	processes = make(map[*FFmpegEncoder]*exec.Cmd)
)

// Cleanup kills every running encoder process.
func Cleanup() {
	processMu.Lock()
	defer processMu.Unlock()

	for _, cmd := range processes {
		if cmd.Process != nil {
			logging.Info("Killing encoder process %d", cmd.Process.Pid)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill encoder process: %v", err)
			}
		}
	}
}

// FFmpegEncoder encodes VP9/Opus WebM with an ffmpeg child process.
type FFmpegEncoder struct {
	cfg Config

	cmd     *exec.Cmd
	stderr  bytes.Buffer
	paused  atomic.Bool
	cadence *cadence

	feeds   sync.WaitGroup
	done    chan struct{}
	failed  chan error
	waitErr error

	stopping  atomic.Bool
	stopOnce  sync.Once
	stopErr   error
	startOnce sync.Once
}

// NewFFmpeg returns a Factory for ffmpeg encoders.
func NewFFmpeg(cfg Config) Factory {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	return func() Encoder {
		return &FFmpegEncoder{
			cfg:     cfg,
			cadence: newCadence(time.Now),
			done:    make(chan struct{}),
			failed:  make(chan error, 1),
		}
	}
}

// MimeType implements Encoder.
func (e *FFmpegEncoder) MimeType() string { return "video/webm" }

// Failed implements Encoder.
func (e *FFmpegEncoder) Failed() <-chan error { return e.failed }

// Pause implements Encoder.
func (e *FFmpegEncoder) Pause() {
	e.paused.Store(true)
	e.cadence.pause()
}

// Resume implements Encoder.
func (e *FFmpegEncoder) Resume() {
	e.cadence.resume()
	e.paused.Store(false)
}

// args builds the ffmpeg command line for a stream.
func (e *FFmpegEncoder) args(stream *compositor.Stream) []string {
	s := stream.Settings
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-r", strconv.Itoa(int(s.FrameRate)),
		"-i", "pipe:0",
	}
	if stream.HasAudio() {
		a := stream.Audio.Settings()
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(a.SampleRate),
			"-ac", strconv.Itoa(a.Channels),
			"-i", "pipe:3",
		)
	}
	args = append(args,
		"-c:v", "libvpx-vp9",
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-row-mt", "1",
		"-threads", strconv.Itoa(e.cfg.Threads),
		"-b:v", e.cfg.VideoBitrate,
		"-pix_fmt", "yuv420p",
	)
	if stream.HasAudio() {
		args = append(args, "-c:a", "libopus", "-b:a", e.cfg.AudioBitrate)
	}
	return append(args, "-f", "webm", "pipe:1")
}

// Start implements Encoder.
func (e *FFmpegEncoder) Start(ctx context.Context, stream *compositor.Stream, sink Sink) error {
	err := errors.New("encoder already started")
	e.startOnce.Do(func() { err = e.start(ctx, stream, sink) })
	return err
}

func (e *FFmpegEncoder) start(ctx context.Context, stream *compositor.Stream, sink Sink) error {
	// The process outlives the request that started it; it ends through Stop.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), e.cfg.Binary, e.args(stream)...)
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	var audioR, audioW *os.File
	if stream.HasAudio() {
		audioR, audioW, err = os.Pipe()
		if err != nil {
			return fmt.Errorf("failed to create audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR}
	}

	if err := cmd.Start(); err != nil {
		if audioR != nil {
			_ = audioR.Close()
			_ = audioW.Close()
		}
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	if audioR != nil {
		// The child holds its own copy.
		_ = audioR.Close()
	}

	e.cmd = cmd
	processMu.Lock()
	processes[e] = cmd
	processMu.Unlock()

	logging.Debug("Encoder started: pid %d, %dx%d, audio: %v",
		cmd.Process.Pid, stream.Settings.Width, stream.Settings.Height, stream.HasAudio())

	e.cadence.setRate(stream.Settings.FrameRate)
	e.feeds.Add(1)
	go e.feedVideo(stream.Video, stdin)
	if audioW != nil {
		e.feeds.Add(1)
		go e.feedAudio(stream.Audio, audioW)
	}

	ch := newChunker(sink)
	copied := make(chan struct{})
	flushed := make(chan struct{})
	go func() {
		defer close(copied)
		if _, err := io.Copy(ch, stdout); err != nil {
			logging.Debug("encoder output: %v", err)
		}
	}()
	go func() {
		defer close(flushed)
		ch.run(e.cfg.FlushInterval, copied)
	}()

	go e.wait(flushed)
	return nil
}

func (e *FFmpegEncoder) feedVideo(out *compositor.VideoOutput, stdin io.WriteCloser) {
	defer e.feeds.Done()
	defer func() {
		if err := stdin.Close(); err != nil {
			logging.Debug("closing encoder stdin: %v", err)
		}
	}()

	var last *image.RGBA
	broken := false
	write := func(img *image.RGBA, n int) {
		for ; n > 0 && !broken; n-- {
			if _, err := stdin.Write(img.Pix); err != nil {
				logging.Debug("encoder video input: %v", err)
				broken = true
			}
		}
	}

	for img := range out.Frames() {
		if e.paused.Load() {
			out.Recycle(img)
			continue
		}
		write(img, e.cadence.next())
		if last != nil {
			out.Recycle(last)
		}
		last = img
	}
	if last != nil {
		write(last, e.cadence.drain())
		out.Recycle(last)
	}
}

func (e *FFmpegEncoder) feedAudio(src io.Reader, w *os.File) {
	defer e.feeds.Done()
	defer func() {
		if err := w.Close(); err != nil {
			logging.Debug("closing encoder audio pipe: %v", err)
		}
	}()

	buf := make([]byte, 16*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 && !e.paused.Load() {
			if _, werr := w.Write(buf[:n]); werr != nil {
				logging.Debug("encoder audio input: %v", werr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (e *FFmpegEncoder) wait(flushed <-chan struct{}) {
	<-flushed
	err := e.cmd.Wait()

	processMu.Lock()
	delete(processes, e)
	processMu.Unlock()

	if err != nil && !e.stopping.Load() {
		logging.Error("FFmpeg stderr: %s", e.stderr.String())
		e.waitErr = fmt.Errorf("%w: %v", ErrEncoderFailure, err)
		e.failed <- e.waitErr
	} else if err != nil {
		e.waitErr = fmt.Errorf("%w: %v", ErrEncoderFailure, err)
	}
	close(e.done)
}

// Stop implements Encoder. The compositor must be stopped first so the
// inputs reach end of stream.
func (e *FFmpegEncoder) Stop() error {
	e.stopOnce.Do(func() {
		e.stopping.Store(true)
		if e.cmd == nil {
			return
		}

		select {
		case <-e.done:
		case <-time.After(stopTimeout):
			logging.Warn("Encoder did not finish within %v, killing it", stopTimeout)
			if e.cmd.Process != nil {
				_ = e.cmd.Process.Kill()
			}
			<-e.done
		}
		e.feeds.Wait()
		e.stopErr = e.waitErr
	})
	return e.stopErr
}
