package codecdetect

import (
	"testing"

	"github.com/user/vplayer/pkg/adapters/mp4fixture"
)

func TestFromSampleEntry(t *testing.T) {
	tests := []struct {
		entry string
		want  Codec
	}{
		{"avc1", CodecH264},
		{"avc3", CodecH264},
		{"hvc1", CodecHEVC},
		{"hev1", CodecHEVC},
		{"av01", CodecAV1},
		{"vp09", CodecVP9},
		{"mp4a", CodecUnknown},
		{"", CodecUnknown},
	}
	for _, tt := range tests {
		if got := FromSampleEntry(tt.entry); got != tt.want {
			t.Errorf("FromSampleEntry(%q) = %s, want %s", tt.entry, got, tt.want)
		}
	}
}

func TestDetectFromBytes(t *testing.T) {
	data, err := mp4fixture.Build(mp4fixture.Movie{Width: 32, Height: 32, FPS: 25, Frames: 5})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	codec, err := DetectFromBytes(data)
	if err != nil {
		t.Fatalf("DetectFromBytes failed: %v", err)
	}
	if codec != CodecAV1 {
		t.Errorf("expected av1, got %s", codec)
	}
}

func TestDetectFromBytes_Invalid(t *testing.T) {
	if _, err := DetectFromBytes([]byte{0, 0, 0, 8, 'f', 'r', 'e', 'e'}); err == nil {
		t.Error("expected error for data without a movie box")
	}
}
