package testsrc

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/user/vplayer/pkg/adapters/inputstream"
	"github.com/user/vplayer/pkg/ports"
)

func openPattern(t *testing.T, yamlDoc string) *Session {
	t.Helper()
	stream, err := inputstream.NewReaderStream(bytes.NewReader([]byte(yamlDoc)), ports.DefaultProbePolicy())
	if err != nil {
		t.Fatalf("NewReaderStream failed: %v", err)
	}
	s, err := New(nil).Open(stream, ports.EngineOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s.(*Session)
}

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern([]byte("width: 32\nfps: 25\nformat: yuv420p\n"))
	if err != nil {
		t.Fatalf("ParsePattern failed: %v", err)
	}
	if p.Width != 32 || p.Height != 48 || p.FPS != 25 || p.Format != "yuv420p" {
		t.Errorf("unexpected pattern %+v", p)
	}

	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"zero width", "width: 0", ports.ErrInvalidParam},
		{"negative fps", "fps: -1", ports.ErrInvalidParam},
		{"unknown format", "format: nv21", ports.ErrUnsupported},
		{"bad yaml", "width: [", ports.ErrInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePattern([]byte(tt.doc)); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSession_Info(t *testing.T) {
	s := openPattern(t, "rotate: 90\naudio: true\n")
	info := s.Info()

	if info.StreamDuration != 900000 || info.ContainerDuration != 10_000_000 {
		t.Errorf("unexpected durations %d / %d", info.StreamDuration, info.ContainerDuration)
	}
	if info.FrameCount != 300 {
		t.Errorf("FrameCount = %d, want 300", info.FrameCount)
	}
	if info.AvgFrameRate.Float() != 30 {
		t.Errorf("AvgFrameRate = %v, want 30", info.AvgFrameRate.Float())
	}
	if info.RotateTag != "90" {
		t.Errorf("RotateTag = %q, want 90", info.RotateTag)
	}
	if info.AudioStreamIndex != 1 || info.AudioChannels != 2 {
		t.Errorf("unexpected audio info %+v", info)
	}
}

func TestSession_PacketsAndFrames(t *testing.T) {
	s := openPattern(t, "duration_ms: 100\naudio: true\n")

	var video, audio int
	for {
		pkt, err := s.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket failed: %v", err)
		}
		if pkt.StreamIndex == audioStream {
			audio++
			continue
		}
		video++
		if err := s.SendPacket(pkt); err != nil {
			t.Fatalf("SendPacket failed: %v", err)
		}
		f, err := s.ReceiveFrame()
		if err != nil {
			t.Fatalf("ReceiveFrame failed: %v", err)
		}
		if f.PTS != pkt.PTS || f.Width != 64 || f.Format != ports.PixelFormatRGBA {
			t.Errorf("frame %+v does not match packet pts %d", f, pkt.PTS)
		}
		if len(f.Planes[0]) != 64*48*4 {
			t.Errorf("plane size = %d", len(f.Planes[0]))
		}
	}
	if video != 3 || audio != 3 {
		t.Errorf("got %d video and %d audio packets, want 3 and 3", video, audio)
	}
}

func TestSession_DelayIsReleasedByDrain(t *testing.T) {
	s := openPattern(t, "duration_ms: 100\ndelay: 2\n")

	for i := 0; i < 3; i++ {
		pkt, err := s.ReadPacket()
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SendPacket(pkt); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.ReceiveFrame(); err != nil {
		t.Fatalf("first frame should be out after three packets: %v", err)
	}
	if _, err := s.ReceiveFrame(); !errors.Is(err, ports.ErrAgain) {
		t.Fatalf("expected ErrAgain, got %v", err)
	}

	if err := s.SendPacket(nil); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 2; i++ {
		f, err := s.ReceiveFrame()
		if err != nil {
			t.Fatalf("drained frame %d: %v", i, err)
		}
		if f.PTS != int64(i)*3000 {
			t.Errorf("drained frame pts = %d, want %d", f.PTS, i*3000)
		}
	}
	if _, err := s.ReceiveFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after drain, got %v", err)
	}
}

func TestSession_SeekLandsOnKeyFrame(t *testing.T) {
	s := openPattern(t, "gop: 10\n")

	if err := s.SeekTime(2_500_000); err != nil {
		t.Fatal(err)
	}
	pkt, err := s.ReadPacket()
	if err != nil {
		t.Fatal(err)
	}
	// 2.5 s is frame 75, the key frame before it is 70
	if pkt.PTS != 70*3000 || !pkt.KeyFrame {
		t.Errorf("seek landed on pts %d (key=%v), want %d", pkt.PTS, pkt.KeyFrame, 70*3000)
	}

	if err := s.SeekStream(0, 1<<40); err != nil {
		t.Fatal(err)
	}
	pkt, err = s.ReadPacket()
	if err != nil {
		t.Fatal(err)
	}
	if pkt.PTS != 290*3000 {
		t.Errorf("seek past the end landed on %d", pkt.PTS)
	}
}

func TestSession_InjectedReadErrors(t *testing.T) {
	s := openPattern(t, "read_error_every: 3\n")

	var failures int
	for i := 0; i < 9; i++ {
		if _, err := s.ReadPacket(); err != nil {
			if !errors.Is(err, ports.ErrIO) {
				t.Fatalf("unexpected error %v", err)
			}
			failures++
		}
	}
	if failures != 3 {
		t.Errorf("failures = %d, want 3", failures)
	}
}

func TestSession_YUVOutput(t *testing.T) {
	s := openPattern(t, "format: yuv420p\nwidth: 15\nheight: 9\n")
	pkt, _ := s.ReadPacket()
	if err := s.SendPacket(pkt); err != nil {
		t.Fatal(err)
	}
	f, err := s.ReceiveFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Format != ports.PixelFormatYUV420P || len(f.Planes) != 3 {
		t.Fatalf("unexpected frame %v with %d planes", f.Format, len(f.Planes))
	}
	if f.Strides[1] != 8 {
		t.Errorf("chroma stride = %d, want 8", f.Strides[1])
	}
}
