// Package smartdecoder selects a codec decoder by codec name.
package smartdecoder

import (
	"errors"
	"fmt"

	"github.com/user/vplayer/pkg/adapters/av1decoder"
	"github.com/user/vplayer/pkg/adapters/codecdetect"
	"github.com/user/vplayer/pkg/adapters/h264decoder"
	"github.com/user/vplayer/pkg/ports"
)

// Codec represents the video codec type (re-exported from codecdetect).
type Codec = codecdetect.Codec

const (
	// CodecH264 represents H.264/AVC codec.
	CodecH264 = codecdetect.CodecH264
	// CodecAV1 represents AV1 codec.
	CodecAV1 = codecdetect.CodecAV1
	// CodecUnknown represents an unknown codec.
	CodecUnknown = codecdetect.CodecUnknown
)

// Backend represents the decoding backend used.
type Backend string

const (
	// BackendFFmpeg represents FFmpeg-based decoding.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendLibaom represents libaom for AV1 decoding.
	BackendLibaom Backend = "libaom"
)

// Options configures the smart decoder behavior.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
}

var (
	// ErrUnsupportedCodec is returned when the codec is not supported.
	ErrUnsupportedCodec = errors.New("smartdecoder: unsupported codec")
	// ErrNoDecoderAvailable is returned when no decoder is available for the codec.
	ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")
)

// NewFactory returns a ports.CodecDecoderFactory that picks a backend per
// codec:
//   - AV1: libaom
//   - H.264: ffmpeg
func NewFactory(opts Options) ports.CodecDecoderFactory {
	if opts.FFmpegPath != "" {
		h264decoder.SetFFmpegPath(opts.FFmpegPath)
	}
	return func(codec string) (ports.CodecDecoder, error) {
		dec, _, err := NewForCodec(Codec(codec))
		return dec, err
	}
}

// NewForCodec creates a decoder for a specific codec and reports the
// backend it uses.
func NewForCodec(codec Codec) (ports.CodecDecoder, Backend, error) {
	switch codec {
	case CodecAV1:
		if !av1decoder.Available() {
			return nil, "", fmt.Errorf("%w: %s", ErrNoDecoderAvailable, codec)
		}
		return av1decoder.New(), BackendLibaom, nil

	case CodecH264:
		if !h264decoder.IsAvailable() {
			return nil, "", fmt.Errorf("%w: %s", ErrNoDecoderAvailable, codec)
		}
		return h264decoder.New(), BackendFFmpeg, nil

	default:
		return nil, "", fmt.Errorf("%w: %s: %w", ErrUnsupportedCodec, codec, ports.ErrUnsupported)
	}
}

// IsH264Available checks if H.264 decoding is available.
func IsH264Available() bool {
	return h264decoder.IsAvailable()
}

// IsAV1Available checks if the libaom backend was compiled in.
func IsAV1Available() bool {
	return av1decoder.Available()
}
