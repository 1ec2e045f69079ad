// Package filesink provides a file-based frame sink implementation.
package filesink

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/user/vplayer/pkg/ports"
)

// Sink saves presented frames as PNG files.
type Sink struct {
	baseDir string
	fs      afero.Fs
}

// New creates a new FileSink writing below baseDir.
func New(fs afero.Fs, baseDir string) *Sink {
	return &Sink{
		baseDir: baseDir,
		fs:      fs,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// Path returns the file a frame index is written to.
func (s *Sink) Path(index int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("frame-%06d.png", index))
}

// SaveFrame encodes img as PNG.
func (s *Sink) SaveFrame(index int, img image.Image) error {
	if img == nil {
		return ports.ErrInvalidParam
	}
	if err := s.fs.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.baseDir, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}
	return afero.WriteFile(s.fs, s.Path(index), buf.Bytes(), 0o644)
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
