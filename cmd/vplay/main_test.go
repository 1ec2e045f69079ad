package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/user/vplayer/pkg/adapters/testsrc"
	"github.com/user/vplayer/pkg/mocks"
	"github.com/user/vplayer/pkg/player"
	"github.com/user/vplayer/pkg/ports"
)

func writePattern(t *testing.T, dir, name string, p testsrc.Pattern) string {
	t.Helper()
	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("marshal pattern: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write pattern: %v", err)
	}
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"vplay"}, args...))
	return out.String(), err
}

func TestFormatInfo(t *testing.T) {
	tests := []struct {
		name string
		info ports.VideoInfo
		want string
	}{
		{
			name: "video only",
			info: ports.VideoInfo{VideoCodec: "h264", VideoWidth: 1920, VideoHeight: 1080, Fps: 30, TotalFrames: 300, DurationMills: 10000, PixelFormat: ports.PixelFormatYUV420P},
			want: "a.mp4: h264 1920x1080 30.000 fps, 300 frames, 10000 ms, yuv420p",
		},
		{
			name: "rotated with audio",
			info: ports.VideoInfo{VideoCodec: "av1", VideoWidth: 48, VideoHeight: 64, Fps: 25, TotalFrames: 50, DurationMills: 2000, PixelFormat: ports.PixelFormatYUV420P, Rotation: -90, HasAudio: true, AudioChannels: 2, AudioSampleRate: 48000},
			want: "a.mp4: av1 48x64 25.000 fps, 50 frames, 2000 ms, yuv420p, rotation -90, audio 2 ch 48000 Hz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatInfo("a.mp4", tt.info); got != tt.want {
				t.Errorf("formatInfo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProbe_TestSrc(t *testing.T) {
	dir := t.TempDir()
	p := testsrc.DefaultPattern()
	p.Width, p.Height, p.DurationMs, p.Audio = 32, 24, 2000, true
	first := writePattern(t, dir, "first.yaml", p)
	p.Audio = false
	p.Rotate = 90
	second := writePattern(t, dir, "second.yaml", p)

	out, err := runApp(t, "probe", "--quiet", "--engine", "testsrc", first, second)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if !strings.HasPrefix(lines[0], first+": testsrc 32x24") || !strings.Contains(lines[0], "2000 ms") || !strings.Contains(lines[0], "audio 2 ch") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], second+": testsrc 24x32") || !strings.Contains(lines[1], "rotation 90") {
		t.Errorf("unexpected second line %q", lines[1])
	}
}

func TestProbe_MuteHidesAudio(t *testing.T) {
	p := testsrc.DefaultPattern()
	p.Audio = true
	path := writePattern(t, t.TempDir(), "a.yaml", p)

	out, err := runApp(t, "probe", "--quiet", "--engine", "testsrc", "--mute", path)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if strings.Contains(out, "audio") {
		t.Errorf("expected no audio with --mute, got %q", out)
	}
}

// exitCode returns the code carried by err, or -1 when it carries none.
func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

func TestProbe_Errors(t *testing.T) {
	_, err := runApp(t, "probe", "--quiet")
	if code := exitCode(err); code != 2 {
		t.Errorf("expected exit code 2 without sources, got %d (%v)", code, err)
	}
	if _, err := runApp(t, "probe", "--quiet", "--engine", "testsrc", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing source")
	}
	if _, err := runApp(t, "probe", "--quiet", "--engine", "avi", "x"); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestPlay_DumpsFrames(t *testing.T) {
	dir := t.TempDir()
	p := testsrc.DefaultPattern()
	p.DurationMs = 1000
	path := writePattern(t, dir, "p.yaml", p)
	dump := filepath.Join(dir, "frames")

	_, err := runApp(t, "play", "--quiet", "--engine", "testsrc",
		"--for", "300ms", "--dump-dir", dump, "--dump-every", "1", path)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	entries, err := os.ReadDir(dump)
	if err != nil {
		t.Fatalf("read dump dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected dumped frames")
	}
	if entries[0].Name() != "frame-000000.png" {
		t.Errorf("unexpected first dump %s", entries[0].Name())
	}
}

func TestFrameDumper(t *testing.T) {
	path := writePattern(t, t.TempDir(), "p.yaml", testsrc.DefaultPattern())

	tests := []struct {
		name    string
		enabled bool
	}{
		{"enabled", true},
		{"disabled", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := mocks.NewFrameSink(tt.enabled)
			var presented atomic.Int64
			log := mocks.NewLogger()

			p := player.New(testsrc.New(log), log)
			err := p.Open(path, player.Options{OnFrame: frameDumper(sink, 2, &presented, log)})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			deadline := time.Now().Add(5 * time.Second)
			for presented.Load() < 5 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			p.Close()

			if presented.Load() < 5 {
				t.Fatalf("expected at least 5 presented frames, got %d", presented.Load())
			}
			if !tt.enabled {
				if sink.Count() != 0 {
					t.Errorf("disabled sink stored %d frames", sink.Count())
				}
				return
			}
			if sink.Count() < 3 {
				t.Errorf("expected at least 3 saved frames, got %d", sink.Count())
			}
			for index, img := range sink.Frames {
				if index%2 != 0 {
					t.Errorf("unexpected saved frame %d", index)
				}
				if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
					t.Errorf("frame %d: unexpected size %v", index, b)
				}
			}
		})
	}
}

func TestPlay_ConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := writePattern(t, dir, "p.yaml", testsrc.DefaultPattern())
	cfgPath := filepath.Join(dir, "vplay.yaml")
	if err := os.WriteFile(cfgPath, []byte("engine: mp4\nformat: bgra\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "play", "--quiet", "--config", cfgPath, "--engine", "testsrc", "--for", "50ms", path)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if !strings.Contains(out, "testsrc 64x48") {
		t.Errorf("expected testsrc video info, got %q", out)
	}
}

func TestPlay_Errors(t *testing.T) {
	_, err := runApp(t, "play", "--quiet")
	if code := exitCode(err); code != 2 {
		t.Errorf("expected exit code 2 without source, got %d (%v)", code, err)
	}
	_, err = runApp(t, "play", "--quiet", "a.yaml", "b.yaml")
	if code := exitCode(err); code != 2 {
		t.Errorf("expected exit code 2 with two sources, got %d (%v)", code, err)
	}
	if _, err := runApp(t, "play", "--quiet", "--engine", "testsrc", "--format", "yuv420p", "x"); err == nil {
		t.Error("expected error for planar output format")
	}
}

func TestVersion(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "vplay version") {
		t.Errorf("unexpected version output %q", out)
	}
}
