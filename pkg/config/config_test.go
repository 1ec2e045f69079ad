package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/user/vplayer/pkg/ports"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}

	opts := cfg.ToPlayerOptions()
	if opts.Format != ports.PixelFormatRGBA {
		t.Errorf("expected rgba, got %s", opts.Format)
	}
	if opts.ZeroLengthUnseekable {
		t.Error("expected zero-length sources to stay seekable by default")
	}
	if opts.ReadRetryBackoff != 5*time.Millisecond {
		t.Errorf("expected 5ms backoff, got %v", opts.ReadRetryBackoff)
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `
log_level: debug
log_timestamps: true
engine: testsrc
frame_scale: 0.5
format: bgra
start_ms: 1500
zero_length_seekable: false
dump:
  dir: /tmp/frames
metrics_addr: ":9100"
`
	if err := afero.WriteFile(fs, "vplay.yaml", []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs, "vplay.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine != EngineTestSrc || cfg.LogLevel != "debug" || cfg.MetricsAddr != ":9100" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.LogTimestamps {
		t.Error("expected log_timestamps")
	}
	if cfg.Dump.Dir != "/tmp/frames" || cfg.Dump.Every != 30 {
		t.Errorf("expected dump dir with default interval, got %+v", cfg.Dump)
	}

	opts := cfg.ToPlayerOptions()
	if opts.FrameScale != 0.5 || opts.Format != ports.PixelFormatBGRA || opts.StartMills != 1500 {
		t.Errorf("unexpected options %+v", opts)
	}
	if !opts.ZeroLengthUnseekable {
		t.Error("expected ZeroLengthUnseekable")
	}
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	if _, err := Load(fs, "missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	tests := []struct {
		name string
		doc  string
	}{
		{"unknown engine", "engine: avi"},
		{"planar format", "format: yuv420p"},
		{"negative scale", "frame_scale: -1"},
		{"negative start", "start_ms: -10"},
		{"negative dump interval", "dump:\n  every: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := afero.WriteFile(fs, "bad.yaml", []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(fs, "bad.yaml")
			if !errors.Is(err, ports.ErrInvalidParam) {
				t.Errorf("expected ErrInvalidParam, got %v", err)
			}
		})
	}

	if err := afero.WriteFile(fs, "broken.yaml", []byte("engine: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(fs, "broken.yaml"); err == nil {
		t.Error("expected parse error")
	}
}
