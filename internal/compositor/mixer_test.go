package compositor

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"screen-recorder/internal/capture"
)

func TestClamp16(t *testing.T) {
	tests := []struct {
		in   int32
		want int16
	}{
		{0, 0},
		{1000, 1000},
		{40000, 32767},
		{-40000, -32768},
	}
	for _, tt := range tests {
		if got := clamp16(tt.in); got != tt.want {
			t.Errorf("clamp16(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAddSamples(t *testing.T) {
	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:], 100)
	binary.LittleEndian.PutUint16(pcm[2:], 0xFFCE) // -50

	acc := []int32{10, 10, 10}
	addSamples(acc, pcm)
	addSamples(acc, pcm)

	want := []int32{210, -90, 10}
	for i := range want {
		if acc[i] != want[i] {
			t.Errorf("acc[%d] = %d, want %d", i, acc[i], want[i])
		}
	}
}

func TestPCMBufferReadAfterClose(t *testing.T) {
	b := newPCMBuffer(1024)
	b.Write([]byte{1, 2, 3, 4})
	b.Close()

	got, err := io.ReadAll(b)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("ReadAll() = %v", got)
	}
}

func TestPCMBufferDropsOldest(t *testing.T) {
	b := newPCMBuffer(8)
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	b.Write([]byte{9, 10, 11, 12})

	got := b.Take(16)
	want := []byte{5, 6, 7, 8, 9, 10, 11, 12}
	if !bytes.Equal(got, want) {
		t.Errorf("Take() = %v, want %v", got, want)
	}
}

func TestPCMBufferDropsWholeFrames(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		write int
		want  int
	}{
		{"one byte over", 8, 9, 5},
		{"three bytes over", 8, 11, 7},
		{"aligned overflow", 8, 12, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newPCMBuffer(tt.limit)
			in := make([]byte, tt.write)
			for i := range in {
				in[i] = byte(i)
			}
			b.Write(in)

			if len(b.buf) != tt.want {
				t.Fatalf("kept %d bytes, want %d", len(b.buf), tt.want)
			}
			// Whatever is kept starts on a stereo s16le frame boundary.
			if b.buf[0]%4 != 0 {
				t.Errorf("first kept byte = %d, not frame aligned", b.buf[0])
			}
		})
	}
}

func TestMixGraphWithoutInputs(t *testing.T) {
	g := NewMixGraph(capture.DefaultAudioSettings)
	g.Connect(nil)
	g.Start()
	if g.Destination() != nil {
		t.Error("Destination() != nil with no inputs")
	}
	g.Close()
	g.Close()
	if !g.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestMixGraphSkipsMismatchedLayout(t *testing.T) {
	g := NewMixGraph(capture.DefaultAudioSettings)
	mono := capture.NewPCMTrack(capture.KindMicrophone, capture.AudioSettings{SampleRate: 16000, Channels: 1}, &silence{}, nil)
	g.Connect(mono)
	if g.Inputs() != 0 {
		t.Errorf("Inputs() = %d, want 0", g.Inputs())
	}
}

func TestMixGraphProducesAudio(t *testing.T) {
	before := OpenMixGraphs()

	g := NewMixGraph(capture.DefaultAudioSettings)
	g.Connect(capture.NewPCMTrack(capture.KindSystemAudio, capture.DefaultAudioSettings, &silence{}, nil))
	g.Connect(capture.NewPCMTrack(capture.KindMicrophone, capture.DefaultAudioSettings, &silence{}, nil))
	g.Start()

	if g.Inputs() != 2 {
		t.Errorf("Inputs() = %d, want 2", g.Inputs())
	}
	dest := g.Destination()
	if dest == nil {
		t.Fatal("Destination() = nil")
	}

	buf := make([]byte, 64)
	if n, err := dest.Read(buf); err != nil || n == 0 {
		t.Errorf("Read() = %d, %v", n, err)
	}

	g.Close()
	if OpenMixGraphs() != before {
		t.Errorf("OpenMixGraphs() = %d, want %d", OpenMixGraphs(), before)
	}
	if _, err := dest.Read(buf); err != io.EOF {
		t.Errorf("Read() after Close error = %v, want io.EOF", err)
	}
}
