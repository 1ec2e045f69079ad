package h264decoder

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"testing"

	"github.com/user/vplayer/pkg/ports"
)

func TestAvccToAnnexB(t *testing.T) {
	tests := []struct {
		name       string
		in         []byte
		lengthSize int
		want       []byte
	}{
		{
			name:       "two units with 4-byte lengths",
			in:         []byte{0, 0, 0, 2, 0x65, 0xAA, 0, 0, 0, 1, 0x41},
			lengthSize: 4,
			want:       []byte{0, 0, 0, 1, 0x65, 0xAA, 0, 0, 0, 1, 0x41},
		},
		{
			name:       "2-byte lengths",
			in:         []byte{0, 1, 0x09, 0, 2, 0x65, 0x01},
			lengthSize: 2,
			want:       []byte{0, 0, 0, 1, 0x09, 0, 0, 0, 1, 0x65, 0x01},
		},
		{
			name:       "truncated unit is dropped",
			in:         []byte{0, 0, 0, 1, 0x09, 0, 0, 0, 9, 0x65},
			lengthSize: 4,
			want:       []byte{0, 0, 0, 1, 0x09},
		},
		{
			name:       "empty",
			in:         nil,
			lengthSize: 4,
			want:       []byte{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := avccToAnnexB(tt.in, tt.lengthSize)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestAnnexBParameterSets(t *testing.T) {
	got := annexBParameterSets([][]byte{{0x67, 0x42}, {0x68}})
	want := []byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x68}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestYUV420Size(t *testing.T) {
	if got := yuv420Size(64, 48); got != 64*48*3/2 {
		t.Errorf("yuv420Size(64, 48) = %d", got)
	}
	if got := yuv420Size(5, 3); got != 15+2*3*2 {
		t.Errorf("yuv420Size(5, 3) = %d", got)
	}
}

func TestDecoder_NotInitialized(t *testing.T) {
	d := New()
	if err := d.SendPacket(&ports.Packet{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := d.ReceiveFrame(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestDecoder_OpenValidation(t *testing.T) {
	d := New()
	if err := d.Open(ports.CodecConfig{Codec: "h264"}); !errors.Is(err, ports.ErrInvalidParam) {
		t.Errorf("expected ErrInvalidParam for zero size, got %v", err)
	}
	if err := d.Open(ports.CodecConfig{Codec: "h264", Width: 16, Height: 16, LengthSize: 3}); !errors.Is(err, ports.ErrInvalidParam) {
		t.Errorf("expected ErrInvalidParam for length size 3, got %v", err)
	}
}

func TestFindFFmpeg_CustomPathMissing(t *testing.T) {
	SetFFmpegPath("/nonexistent/ffmpeg")
	defer SetFFmpegPath("")

	if _, err := findFFmpeg(); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("expected ErrFFmpegNotFound, got %v", err)
	}
	if IsAvailable() {
		t.Error("expected IsAvailable to be false")
	}
}

// encodeTestStream produces an Annex B stream with ffmpeg's test source.
func encodeTestStream(t *testing.T, frames int) []byte {
	t.Helper()
	path, err := findFFmpeg()
	if err != nil {
		t.Skip("ffmpeg not available")
	}
	var out bytes.Buffer
	cmd := exec.Command(path, "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=30",
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "libx264", "-bf", "0", "-g", "30",
		"-f", "h264", "pipe:1")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot encode test stream: %v", err)
	}
	return out.Bytes()
}

func TestDecoder_DecodesAnnexBStream(t *testing.T) {
	stream := encodeTestStream(t, 10)

	d := New()
	if err := d.Open(ports.CodecConfig{Codec: "h264", Width: 64, Height: 48}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	if err := d.SendPacket(&ports.Packet{PTS: 0, DTS: 0, KeyFrame: true, Data: stream}); err != nil {
		t.Fatalf("SendPacket failed: %v", err)
	}
	if err := d.SendPacket(nil); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	decoded := 0
	for {
		f, err := d.ReceiveFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReceiveFrame failed: %v", err)
		}
		if f.Width != 64 || f.Height != 48 || f.Format != ports.PixelFormatYUV420P {
			t.Fatalf("unexpected frame %dx%d %s", f.Width, f.Height, f.Format)
		}
		if len(f.Planes[0]) != 64*48 || len(f.Planes[1]) != 32*24 {
			t.Fatalf("unexpected plane sizes %d, %d", len(f.Planes[0]), len(f.Planes[1]))
		}
		if decoded == 0 && f.PTS != 0 {
			t.Errorf("expected first frame pts 0, got %d", f.PTS)
		}
		if decoded > 0 && f.PTS != ports.NoPTS {
			t.Errorf("expected frame %d without timestamp, got %d", decoded, f.PTS)
		}
		decoded++
	}
	if decoded != 10 {
		t.Errorf("expected 10 frames, got %d", decoded)
	}

	// Flush returns the decoder to its idle state.
	d.Flush()
	if _, err := d.ReceiveFrame(); !errors.Is(err, ports.ErrAgain) {
		t.Errorf("expected ErrAgain after flush, got %v", err)
	}
}
