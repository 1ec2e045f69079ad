// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/user/vplayer/pkg/player"
	"github.com/user/vplayer/pkg/ports"
)

// Engine names accepted by the engine key.
const (
	EngineMP4     = "mp4"
	EngineTestSrc = "testsrc"
)

// Config represents the full configuration for vplay.
type Config struct {
	LogLevel      string `yaml:"log_level"`
	LogTimestamps bool   `yaml:"log_timestamps"`

	// Decoding
	Engine          string `yaml:"engine"`
	FFmpegPath      string `yaml:"ffmpeg_path"`
	ProbeDecoderFPS bool   `yaml:"probe_decoder_fps"`
	ProbeKeyFrames  bool   `yaml:"probe_key_frames"`

	// Playback
	FrameScale         float64 `yaml:"frame_scale"`
	Format             string  `yaml:"format"`
	Mute               bool    `yaml:"mute"`
	StartMs            int64   `yaml:"start_ms"`
	ReadRetryBackoffMs int     `yaml:"read_retry_backoff_ms"`

	// Input
	ZeroLengthSeekable bool `yaml:"zero_length_seekable"`

	// Debug
	Dump DumpConfig `yaml:"dump"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// DumpConfig controls saving presented frames as images.
type DumpConfig struct {
	Dir   string `yaml:"dir"`
	Every int    `yaml:"every"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		LogLevel: "info",

		Engine: EngineMP4,

		FrameScale:         1.0,
		Format:             "rgba",
		ReadRetryBackoffMs: int(player.DefaultReadRetryBackoff / time.Millisecond),

		ZeroLengthSeekable: true,

		Dump: DumpConfig{
			Every: 30,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on the OS filesystem.
func LoadFromFile(path string) (Config, error) {
	return Load(afero.NewOsFs(), path)
}

// Load reads a YAML file from fs over Defaults.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Defaults()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineMP4, EngineTestSrc:
	default:
		return fmt.Errorf("engine %q: %w", c.Engine, ports.ErrInvalidParam)
	}
	if f := ports.ParsePixelFormat(c.Format); !f.IsPacked32() {
		return fmt.Errorf("format %q: %w", c.Format, ports.ErrInvalidParam)
	}
	if c.FrameScale < 0 {
		return fmt.Errorf("frame_scale %g: %w", c.FrameScale, ports.ErrInvalidParam)
	}
	if c.StartMs < 0 {
		return fmt.Errorf("start_ms %d: %w", c.StartMs, ports.ErrInvalidParam)
	}
	if c.ReadRetryBackoffMs < 0 {
		return fmt.Errorf("read_retry_backoff_ms %d: %w", c.ReadRetryBackoffMs, ports.ErrInvalidParam)
	}
	if c.Dump.Every < 0 {
		return fmt.Errorf("dump.every %d: %w", c.Dump.Every, ports.ErrInvalidParam)
	}
	return nil
}

// ToPlayerOptions converts Config to player.Options. Callbacks are left
// for the caller to set.
func (c Config) ToPlayerOptions() player.Options {
	return player.Options{
		Mute:                 c.Mute,
		StartMills:           c.StartMs,
		FrameScale:           c.FrameScale,
		Format:               ports.ParsePixelFormat(c.Format),
		ProbeKeyFrames:       c.ProbeKeyFrames,
		ProbeDecoderFPS:      c.ProbeDecoderFPS,
		ReadRetryBackoff:     time.Duration(c.ReadRetryBackoffMs) * time.Millisecond,
		ZeroLengthUnseekable: !c.ZeroLengthSeekable,
	}
}
