// Package inputstream implements ports.InputStream over files, open
// descriptors and arbitrary readers.
package inputstream

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/user/vplayer/pkg/ports"
)

// DescriptorScheme prefixes sources that name an already open descriptor.
const DescriptorScheme = "fd://"

// Options configures Open.
type Options struct {
	// Fs resolves file paths. Defaults to the OS filesystem.
	Fs afero.Fs
	// Policy tunes the seekability probe.
	Policy ports.ProbePolicy
	// Logger receives probe results. Optional.
	Logger ports.Logger
}

// Open resolves a source string into an InputStream. "fd://<n>" selects a
// descriptor the caller keeps owning; anything else is a file path.
func Open(uri string, opts Options) (ports.InputStream, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty source: %w", ports.ErrInvalidParam)
	}

	var (
		s   ports.InputStream
		err error
	)
	if rest, ok := strings.CutPrefix(uri, DescriptorScheme); ok {
		fd, convErr := strconv.Atoi(rest)
		if convErr != nil || fd < 0 {
			return nil, fmt.Errorf("malformed descriptor source %q: %w", uri, ports.ErrInvalidParam)
		}
		s, err = NewDescriptorStream(fd, opts.Policy)
	} else {
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		s, err = NewFileStream(fs, uri, opts.Policy)
	}
	if err != nil {
		return nil, err
	}

	if opts.Logger != nil {
		opts.Logger.Debug("Opened source %s (seekable=%t, size=%d)", uri, s.Seekable(), s.Size())
	}
	return s, nil
}

// backend is the raw byte source under a stream.
type backend interface {
	read(p []byte) (int, error)
	seek(offset int64, whence int) (int64, error)
	close() error
}

// stream holds the capability bookkeeping shared by every variant.
type stream struct {
	b        backend
	seekable bool
	size     int64
	pos      int64
	closed   bool
}

func newStream(b backend, policy ports.ProbePolicy) stream {
	seekable, size, offset := probe(b, policy)
	return stream{b: b, seekable: seekable, size: size, pos: offset}
}

// maxEmptyReads bounds consecutive (0, nil) reads before a backend is
// treated as stuck.
const maxEmptyReads = 100

// Read reads up to len(p) bytes. It returns (0, io.EOF) at the end of data
// and an error wrapping ports.ErrIO on a fault. A backend read that makes
// no progress is retried.
func (s *stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("read: %w: %w", ports.ErrIO, errClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	for range maxEmptyReads {
		n, err := s.b.read(p)
		s.pos += int64(n)
		if n > 0 {
			return n, nil
		}
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		if err != nil {
			return 0, fmt.Errorf("read: %w: %w", ports.ErrIO, err)
		}
	}
	return 0, fmt.Errorf("read: %w: %w", ports.ErrIO, io.ErrNoProgress)
}

// Seek repositions the stream. whence may also be ports.SeekSize, which
// reports the total size without moving.
func (s *stream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("seek: %w: %w", ports.ErrIO, errClosed)
	}
	if !s.seekable {
		return 0, ports.ErrNotSeekable
	}

	switch whence {
	case ports.SeekSize:
		if s.size < 0 {
			return 0, ports.ErrSizeUnknown
		}
		return s.size, nil
	case io.SeekStart, io.SeekCurrent, io.SeekEnd:
	default:
		return 0, fmt.Errorf("seek whence %d: %w", whence, ports.ErrInvalidParam)
	}

	pos, err := s.b.seek(offset, whence)
	if err != nil {
		return 0, fmt.Errorf("seek: %w: %w", ports.ErrIO, err)
	}
	s.pos = pos
	return pos, nil
}

// Close releases the backend. Closing twice is a no-op.
func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.b.close()
}

func (s *stream) Seekable() bool  { return s.seekable }
func (s *stream) Size() int64     { return s.size }
func (s *stream) Position() int64 { return s.pos }
func (s *stream) Valid() bool     { return !s.closed }

var errClosed = errors.New("stream closed")
