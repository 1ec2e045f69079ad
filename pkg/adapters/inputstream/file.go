package inputstream

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/user/vplayer/pkg/ports"
)

// FileStream reads a file it opened itself and closes it on Close.
type FileStream struct {
	stream
	path string
}

// NewFileStream opens path on fs for reading.
func NewFileStream(fs afero.Fs, path string, policy ports.ProbePolicy) (*FileStream, error) {
	if fs == nil || path == "" {
		return nil, ports.ErrInvalidParam
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, ports.ErrIO, err)
	}
	return &FileStream{stream: newStream(&fileBackend{f: f}, policy), path: path}, nil
}

// Path returns the path the stream was opened from.
func (s *FileStream) Path() string {
	return s.path
}

type fileBackend struct {
	f afero.File
}

func (b *fileBackend) read(p []byte) (int, error) { return b.f.Read(p) }

func (b *fileBackend) seek(offset int64, whence int) (int64, error) {
	return b.f.Seek(offset, whence)
}

func (b *fileBackend) close() error { return b.f.Close() }
