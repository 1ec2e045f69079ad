package smartdecoder

import (
	"errors"
	"testing"

	"github.com/user/vplayer/pkg/ports"
)

func TestNewForCodecAV1(t *testing.T) {
	decoder, backend, err := NewForCodec(CodecAV1)
	if !IsAV1Available() {
		if !errors.Is(err, ErrNoDecoderAvailable) {
			t.Errorf("expected ErrNoDecoderAvailable, got %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("failed to create AV1 decoder: %v", err)
	}
	defer decoder.Close()

	if backend != BackendLibaom {
		t.Errorf("expected backend libaom, got %s", backend)
	}
}

func TestNewForCodecH264(t *testing.T) {
	if !IsH264Available() {
		t.Skip("H.264 decoder not available")
	}

	decoder, backend, err := NewForCodec(CodecH264)
	if err != nil {
		t.Fatalf("failed to create H.264 decoder: %v", err)
	}
	defer decoder.Close()

	if backend != BackendFFmpeg {
		t.Errorf("expected backend ffmpeg, got %s", backend)
	}
}

func TestNewForCodecUnknown(t *testing.T) {
	for _, codec := range []Codec{CodecUnknown, "hevc", "vp9"} {
		_, _, err := NewForCodec(codec)
		if !errors.Is(err, ErrUnsupportedCodec) {
			t.Errorf("%s: expected ErrUnsupportedCodec, got %v", codec, err)
		}
		if !errors.Is(err, ports.ErrUnsupported) {
			t.Errorf("%s: expected ports.ErrUnsupported, got %v", codec, err)
		}
	}
}

func TestNewFactory(t *testing.T) {
	factory := NewFactory(Options{})
	if _, err := factory("unknown"); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}
