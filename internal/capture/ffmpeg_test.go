package capture

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestScreenArgs(t *testing.T) {
	tests := []struct {
		name     string
		config   FFmpegConfig
		contains []string
	}{
		{
			name:     "x11grab",
			config:   FFmpegConfig{Backend: BackendX11, Display: ":0.0"},
			contains: []string{"-f x11grab", "-framerate 30", "-i :0.0", "-pix_fmt rgba", "pipe:1", "min(iw,1920)"},
		},
		{
			name:     "avfoundation",
			config:   FFmpegConfig{Backend: BackendAVFoundation, Display: "1"},
			contains: []string{"-f avfoundation", "-i 1:none", "-capture_cursor 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewFFmpegProvider(tt.config)
			args := strings.Join(p.screenArgs(DefaultScreenConstraints), " ")
			for _, want := range tt.contains {
				if !strings.Contains(args, want) {
					t.Errorf("args %q missing %q", args, want)
				}
			}
		})
	}
}

func TestAudioInputArgs(t *testing.T) {
	p := NewFFmpegProvider(FFmpegConfig{})
	args := strings.Join(p.audioInputArgs("default"), " ")
	for _, want := range []string{"-f pulse", "-i default", "-f s16le", "-ac 2", "-ar 48000"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestOptionalDevicesRequireConfig(t *testing.T) {
	p := NewFFmpegProvider(FFmpegConfig{})

	if _, err := p.Camera(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Camera without device = %v, want ErrDeviceUnavailable", err)
	}
	if _, err := p.Microphone(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Microphone without device = %v, want ErrDeviceUnavailable", err)
	}
}

func TestClassifyStderr(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"[x11grab @ 0x1] Cannot open display :0.0, error 1.", ErrDeviceUnavailable},
		{"/dev/video0: Permission denied", ErrPermissionDenied},
		{"[AVFoundation indev] Not authorized to capture screen", ErrPermissionDenied},
		{"/dev/video2: No such file or directory", ErrDeviceUnavailable},
		{"frame=   10 fps=0.0 q=-0.0 size=N/A", nil},
	}

	for _, tt := range tests {
		got := classifyStderr(tt.line)
		if tt.want == nil {
			if got != nil {
				t.Errorf("classifyStderr(%q) = %v, want nil", tt.line, got)
			}
			continue
		}
		if !errors.Is(got, tt.want) {
			t.Errorf("classifyStderr(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestProbeVideoReadsNegotiatedSize(t *testing.T) {
	stderr := strings.Join([]string{
		"Input #0, x11grab, from ':0.0':",
		"  Stream #0:0: Video: rawvideo (BGR[0] / 0x524742), bgr0, 2560x1440, 30 fps, 1000k tbn",
		"Stream mapping:",
		"Output #0, rawvideo, to 'pipe:1':",
		"  Stream #0:0: Video: rawvideo (RGBA / 0x41424752), rgba(pc, progressive), 1920x1080, q=2-31, 30 fps",
	}, "\n")

	settings, err := probeVideo(context.Background(), bufio.NewScanner(strings.NewReader(stderr)))
	if err != nil {
		t.Fatalf("probeVideo: %v", err)
	}
	if settings.Width != 1920 || settings.Height != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", settings.Width, settings.Height)
	}
	if settings.FrameRate != 30 {
		t.Errorf("frame rate = %v, want 30", settings.FrameRate)
	}
}

func TestProbeVideoFailures(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"permission", "Permission denied", ErrPermissionDenied},
		{"early exit", "Input #0, x11grab", ErrDeviceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := probeVideo(context.Background(), bufio.NewScanner(strings.NewReader(tt.stderr)))
			if !errors.Is(err, tt.want) {
				t.Errorf("probeVideo = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProbeAudio(t *testing.T) {
	ok := "Output #0, s16le, to 'pipe:1':\n  Stream #0:0: Audio: pcm_s16le, 48000 Hz, stereo, s16, 1536 kb/s"
	if err := probeAudio(context.Background(), bufio.NewScanner(strings.NewReader(ok))); err != nil {
		t.Errorf("probeAudio: %v", err)
	}

	bad := "[pulse @ 0x1] Connection refused"
	if err := probeAudio(context.Background(), bufio.NewScanner(strings.NewReader(bad))); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("probeAudio = %v, want ErrDeviceUnavailable", err)
	}
}
