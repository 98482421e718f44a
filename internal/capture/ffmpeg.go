package capture

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"screen-recorder/internal/logging"
)

// Capture backends understood by FFmpegProvider.
const (
	BackendX11          = "x11"
	BackendAVFoundation = "avfoundation"
)

// probeTimeout bounds how long we wait for ffmpeg to report the negotiated
// stream. Permission prompts on macOS block inside this window.
const probeTimeout = 60 * time.Second

// FFmpegConfig selects the devices read by FFmpegProvider.
type FFmpegConfig struct {
	Backend     string
	Display     string // x11: ":0.0", avfoundation: screen index such as "1"
	Camera      string // x11: "/dev/video0", avfoundation: "0"
	Microphone  string // pulse source or avfoundation audio index
	SystemAudio string // optional pulse monitor source; empty disables system audio
	Binary      string
}

// FFmpegProvider captures devices through ffmpeg child processes that write
// rawvideo RGBA frames or s16le PCM to stdout.
type FFmpegProvider struct {
	config FFmpegConfig

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// NewFFmpegProvider creates a provider for the given devices.
func NewFFmpegProvider(config FFmpegConfig) *FFmpegProvider {
	if config.Binary == "" {
		config.Binary = "ffmpeg"
	}
	if config.Backend == "" {
		config.Backend = BackendX11
	}
	return &FFmpegProvider{
		config:    config,
		processes: make(map[string]*exec.Cmd),
	}
}

// Screen implements Provider.
func (p *FFmpegProvider) Screen(ctx context.Context, c Constraints) (VideoTrack, AudioTrack, error) {
	video, err := p.openVideo(ctx, KindScreen, p.screenArgs(c))
	if err != nil {
		return nil, nil, err
	}

	if p.config.SystemAudio == "" {
		return video, nil, nil
	}

	audio, err := p.openAudio(ctx, KindSystemAudio, p.audioInputArgs(p.config.SystemAudio))
	if err != nil {
		// System audio is a bonus on top of the screen, never a reason to fail it.
		logging.Warn("System audio unavailable: %v", err)
		return video, nil, nil
	}
	return video, audio, nil
}

// Camera implements Provider.
func (p *FFmpegProvider) Camera(ctx context.Context) (VideoTrack, error) {
	if p.config.Camera == "" {
		return nil, fmt.Errorf("%w: no camera configured", ErrDeviceUnavailable)
	}
	return p.openVideo(ctx, KindCamera, p.cameraArgs())
}

// Microphone implements Provider.
func (p *FFmpegProvider) Microphone(ctx context.Context) (AudioTrack, error) {
	if p.config.Microphone == "" {
		return nil, fmt.Errorf("%w: no microphone configured", ErrDeviceUnavailable)
	}
	return p.openAudio(ctx, KindMicrophone, p.audioInputArgs(p.config.Microphone))
}

func (p *FFmpegProvider) screenArgs(c Constraints) []string {
	fps := strconv.Itoa(c.FrameRate)
	var args []string
	switch p.config.Backend {
	case BackendAVFoundation:
		args = []string{"-f", "avfoundation", "-capture_cursor", "1", "-framerate", fps,
			"-i", p.config.Display + ":none"}
	default:
		args = []string{"-f", "x11grab", "-framerate", fps, "-i", p.config.Display}
	}
	if c.Width > 0 && c.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf(
			"scale=w='min(iw,%d)':h='min(ih,%d)':force_original_aspect_ratio=decrease:force_divisible_by=2",
			c.Width, c.Height))
	}
	return append(args, "-f", "rawvideo", "-pix_fmt", "rgba", "pipe:1")
}

func (p *FFmpegProvider) cameraArgs() []string {
	var args []string
	switch p.config.Backend {
	case BackendAVFoundation:
		args = []string{"-f", "avfoundation", "-framerate", "30", "-i", p.config.Camera + ":none"}
	default:
		args = []string{"-f", "v4l2", "-framerate", "30", "-i", p.config.Camera}
	}
	return append(args, "-f", "rawvideo", "-pix_fmt", "rgba", "pipe:1")
}

func (p *FFmpegProvider) audioInputArgs(device string) []string {
	var args []string
	switch p.config.Backend {
	case BackendAVFoundation:
		args = []string{"-f", "avfoundation", "-i", ":" + device}
	default:
		args = []string{"-f", "pulse", "-i", device}
	}
	return append(args,
		"-f", "s16le",
		"-ac", strconv.Itoa(DefaultAudioSettings.Channels),
		"-ar", strconv.Itoa(DefaultAudioSettings.SampleRate),
		"pipe:1")
}

// start launches ffmpeg and returns its stdout and a scanner over stderr.
func (p *FFmpegProvider) start(name string, args []string) (*exec.Cmd, io.ReadCloser, *bufio.Scanner, error) {
	full := append([]string{"-hide_banner", "-nostdin", "-loglevel", "info"}, args...)
	cmd := exec.Command(p.config.Binary, full...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: failed to start ffmpeg: %v", ErrDeviceUnavailable, err)
	}

	p.processMu.Lock()
	p.processes[name] = cmd
	p.processMu.Unlock()

	return cmd, stdout, bufio.NewScanner(stderr), nil
}

func (p *FFmpegProvider) forget(name string) {
	p.processMu.Lock()
	delete(p.processes, name)
	p.processMu.Unlock()
}

func (p *FFmpegProvider) openVideo(ctx context.Context, kind Kind, args []string) (VideoTrack, error) {
	name := string(kind)
	cmd, stdout, stderr, err := p.start(name, args)
	if err != nil {
		return nil, err
	}

	settings, err := probeVideo(ctx, stderr)
	if err != nil {
		killProcess(cmd)
		_ = cmd.Wait()
		p.forget(name)
		return nil, err
	}

	track := NewFrameTrack(kind, settings, func() { killProcess(cmd) })
	go drainLog(name, stderr)
	go readFrames(track, stdout, settings)
	go func() {
		if err := cmd.Wait(); err != nil {
			logging.Debug("ffmpeg %s exited: %v", name, err)
		}
		p.forget(name)
		// The device went away (share revoked, camera unplugged).
		track.Stop()
	}()

	logging.Debug("Opened %s: %dx%d @ %.2ffps", kind, settings.Width, settings.Height, settings.FrameRate)
	return track, nil
}

func (p *FFmpegProvider) openAudio(ctx context.Context, kind Kind, args []string) (AudioTrack, error) {
	name := string(kind)
	cmd, stdout, stderr, err := p.start(name, args)
	if err != nil {
		return nil, err
	}

	if err := probeAudio(ctx, stderr); err != nil {
		killProcess(cmd)
		_ = cmd.Wait()
		p.forget(name)
		return nil, err
	}

	track := NewPCMTrack(kind, DefaultAudioSettings, stdout, func() { killProcess(cmd) })
	go drainLog(name, stderr)
	go func() {
		if err := cmd.Wait(); err != nil {
			logging.Debug("ffmpeg %s exited: %v", name, err)
		}
		p.forget(name)
		track.Stop()
	}()
	return track, nil
}

// Cleanup kills every capture process still running.
func (p *FFmpegProvider) Cleanup() {
	p.processMu.Lock()
	defer p.processMu.Unlock()

	for name, cmd := range p.processes {
		logging.Info("Killing capture process: %s", name)
		killProcess(cmd)
	}
}

func killProcess(cmd *exec.Cmd) {
	if cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			logging.Debug("kill ffmpeg: %v", err)
		}
	}
}

var (
	outputVideoPattern = regexp.MustCompile(`Video: rawvideo.*?, (\d{2,5})x(\d{2,5})`)
	fpsPattern         = regexp.MustCompile(`(\d+(?:\.\d+)?) (?:fps|tbr)`)
	outputAudioPattern = regexp.MustCompile(`Audio: pcm_s16le`)
)

// classifyStderr maps well-known ffmpeg failures to acquisition errors.
func classifyStderr(line string) error {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "access denied"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(line))
	case strings.Contains(lower, "cannot open display"),
		strings.Contains(lower, "no such file or directory"),
		strings.Contains(lower, "input/output error"),
		strings.Contains(lower, "device or resource busy"),
		strings.Contains(lower, "connection refused"):
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, strings.TrimSpace(line))
	}
	return nil
}

type probeResult struct {
	settings VideoSettings
	err      error
}

// probeVideo reads ffmpeg's stderr until the output rawvideo stream is
// described, which carries the negotiated size.
func probeVideo(ctx context.Context, stderr *bufio.Scanner) (VideoSettings, error) {
	done := make(chan probeResult, 1)
	go func() {
		inOutput := false
		var fps float64
		for stderr.Scan() {
			line := stderr.Text()
			if err := classifyStderr(line); err != nil {
				done <- probeResult{err: err}
				return
			}
			if m := fpsPattern.FindStringSubmatch(line); m != nil && fps == 0 {
				fps, _ = strconv.ParseFloat(m[1], 64)
			}
			if strings.HasPrefix(line, "Output #0") {
				inOutput = true
				continue
			}
			if !inOutput {
				continue
			}
			if m := outputVideoPattern.FindStringSubmatch(line); m != nil {
				w, _ := strconv.Atoi(m[1])
				h, _ := strconv.Atoi(m[2])
				done <- probeResult{settings: VideoSettings{Width: w, Height: h, FrameRate: fps}}
				return
			}
		}
		done <- probeResult{err: fmt.Errorf("%w: ffmpeg exited before reporting a stream", ErrDeviceUnavailable)}
	}()

	return waitProbe(ctx, done)
}

func probeAudio(ctx context.Context, stderr *bufio.Scanner) error {
	done := make(chan probeResult, 1)
	go func() {
		for stderr.Scan() {
			line := stderr.Text()
			if err := classifyStderr(line); err != nil {
				done <- probeResult{err: err}
				return
			}
			if outputAudioPattern.MatchString(line) {
				done <- probeResult{}
				return
			}
		}
		done <- probeResult{err: fmt.Errorf("%w: ffmpeg exited before reporting a stream", ErrDeviceUnavailable)}
	}()

	_, err := waitProbe(ctx, done)
	return err
}

func waitProbe(ctx context.Context, done <-chan probeResult) (VideoSettings, error) {
	timer := time.NewTimer(probeTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.settings, r.err
	case <-timer.C:
		return VideoSettings{}, fmt.Errorf("%w: timed out waiting for device", ErrDeviceUnavailable)
	case <-ctx.Done():
		return VideoSettings{}, ctx.Err()
	}
}

func drainLog(name string, stderr *bufio.Scanner) {
	for stderr.Scan() {
		if logging.IsDebugEnabled() {
			logging.Debug("ffmpeg[%s]: %s", name, stderr.Text())
		}
	}
}

// readFrames fills a back buffer from ffmpeg and swaps it in, so the
// compositor always reads a complete frame.
func readFrames(track *FrameTrack, r io.Reader, s VideoSettings) {
	back := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	for {
		if _, err := io.ReadFull(r, back.Pix); err != nil {
			if track.Live() {
				logging.Debug("%s frame reader stopped: %v", track.Kind(), err)
			}
			return
		}
		prev := track.swap(back)
		if rgba, ok := prev.(*image.RGBA); ok && rgba.Rect.Eq(back.Rect) {
			back = rgba
		} else {
			back = image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
		}
	}
}
