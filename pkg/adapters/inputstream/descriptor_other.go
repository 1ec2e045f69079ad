//go:build !unix

package inputstream

import (
	"fmt"

	"github.com/user/vplayer/pkg/ports"
)

// DescriptorStream is only available on unix platforms.
type DescriptorStream struct {
	stream
	fd int
}

// NewDescriptorStream always fails on this platform.
func NewDescriptorStream(fd int, policy ports.ProbePolicy) (*DescriptorStream, error) {
	return nil, fmt.Errorf("descriptor sources: %w", ports.ErrUnsupported)
}

// Fd returns the wrapped descriptor.
func (s *DescriptorStream) Fd() int {
	return s.fd
}
