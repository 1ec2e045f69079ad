//go:build unix

package inputstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/user/vplayer/pkg/ports"
	"golang.org/x/sys/unix"
)

// DescriptorStream reads a descriptor owned by the caller. Close never
// closes the descriptor.
type DescriptorStream struct {
	stream
	fd int
}

// NewDescriptorStream wraps an open descriptor.
func NewDescriptorStream(fd int, policy ports.ProbePolicy) (*DescriptorStream, error) {
	if fd < 0 {
		return nil, fmt.Errorf("descriptor %d: %w", fd, ports.ErrInvalidParam)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return nil, fmt.Errorf("descriptor %d: %w: %w", fd, ports.ErrInvalidParam, err)
	}
	return &DescriptorStream{stream: newStream(&descriptorBackend{fd: fd}, policy), fd: fd}, nil
}

// Fd returns the wrapped descriptor.
func (s *DescriptorStream) Fd() int {
	return s.fd
}

type descriptorBackend struct {
	fd int
}

func (b *descriptorBackend) read(p []byte) (int, error) {
	for {
		n, err := unix.Read(b.fd, p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (b *descriptorBackend) seek(offset int64, whence int) (int64, error) {
	return unix.Seek(b.fd, offset, whence)
}

func (b *descriptorBackend) close() error { return nil }
