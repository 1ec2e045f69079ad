// Package testsrc is a decode engine that synthesizes a test pattern
// described by a small YAML document instead of decoding a container.
package testsrc

import (
	"fmt"

	"github.com/user/vplayer/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Pattern describes a synthetic source.
type Pattern struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FPS        float64 `yaml:"fps"`
	DurationMs int64   `yaml:"duration_ms"`
	// Rotate is reported as the stream's "rotate" tag when non-zero.
	Rotate int `yaml:"rotate"`
	// Format is the decoder output: rgba, bgra or yuv420p.
	Format string `yaml:"format"`
	// GOP is the key frame interval in frames.
	GOP int `yaml:"gop"`
	// Audio interleaves one packet of a silent audio stream per frame.
	Audio bool `yaml:"audio"`
	// ReadErrorEvery fails every n-th packet read with a transient error.
	ReadErrorEvery int `yaml:"read_error_every"`
	// Delay is the number of frames the decoder holds back until drained.
	Delay int `yaml:"delay"`
}

// DefaultPattern returns a 10 second, 30 fps, 64x48 RGBA pattern.
func DefaultPattern() Pattern {
	return Pattern{
		Width:      64,
		Height:     48,
		FPS:        30,
		DurationMs: 10000,
		Format:     "rgba",
		GOP:        30,
	}
}

// ParsePattern decodes data on top of DefaultPattern.
func ParsePattern(data []byte) (Pattern, error) {
	p := DefaultPattern()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pattern{}, fmt.Errorf("parse pattern: %w: %w", ports.ErrInvalidParam, err)
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// Validate checks the pattern for values the engine cannot synthesize.
func (p Pattern) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("pattern size %dx%d: %w", p.Width, p.Height, ports.ErrInvalidParam)
	case p.FPS <= 0:
		return fmt.Errorf("pattern fps %v: %w", p.FPS, ports.ErrInvalidParam)
	case p.DurationMs < 0:
		return fmt.Errorf("pattern duration %d: %w", p.DurationMs, ports.ErrInvalidParam)
	case p.GOP < 0 || p.Delay < 0 || p.ReadErrorEvery < 0:
		return fmt.Errorf("pattern counters must not be negative: %w", ports.ErrInvalidParam)
	}
	if p.pixelFormat() == ports.PixelFormatUnknown {
		return fmt.Errorf("pattern format %q: %w", p.Format, ports.ErrUnsupported)
	}
	return nil
}

// Marshal encodes the pattern as YAML, ready to be served as a source.
func (p Pattern) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

func (p Pattern) pixelFormat() ports.PixelFormat {
	switch f := ports.ParsePixelFormat(p.Format); f {
	case ports.PixelFormatRGBA, ports.PixelFormatBGRA, ports.PixelFormatYUV420P:
		return f
	}
	return ports.PixelFormatUnknown
}

// frames returns the number of frames in the pattern.
func (p Pattern) frames() int {
	return int(float64(p.DurationMs) * p.FPS / 1000)
}

func (p Pattern) gop() int {
	if p.GOP <= 0 {
		return 1
	}
	return p.GOP
}
