package inputstream

import (
	"io"

	"github.com/user/vplayer/pkg/ports"
)

// ReaderStream adapts any io.Reader. It is seekable only when the reader is
// also an io.Seeker that passes the probe. Close closes the reader when it
// implements io.Closer.
type ReaderStream struct {
	stream
}

// NewReaderStream wraps r.
func NewReaderStream(r io.Reader, policy ports.ProbePolicy) (*ReaderStream, error) {
	if r == nil {
		return nil, ports.ErrInvalidParam
	}
	return &ReaderStream{stream: newStream(&readerBackend{r: r}, policy)}, nil
}

type readerBackend struct {
	r io.Reader
}

func (b *readerBackend) read(p []byte) (int, error) { return b.r.Read(p) }

func (b *readerBackend) seek(offset int64, whence int) (int64, error) {
	s, ok := b.r.(io.Seeker)
	if !ok {
		return 0, ports.ErrNotSeekable
	}
	return s.Seek(offset, whence)
}

func (b *readerBackend) close() error {
	if c, ok := b.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
