package inputstream

import (
	"io"

	"github.com/user/vplayer/pkg/ports"
)

type seeker interface {
	seek(offset int64, whence int) (int64, error)
}

// probe establishes seekability once: query the offset, step forward one
// byte, step back, query the end, restore. Any failure means the source
// cannot seek and its size is unknown. The returned offset is where the
// source was positioned when probed.
func probe(s seeker, policy ports.ProbePolicy) (seekable bool, size, offset int64) {
	cur, err := s.seek(0, io.SeekCurrent)
	if err != nil {
		return false, -1, 0
	}
	if _, err := s.seek(1, io.SeekCurrent); err != nil {
		return false, -1, cur
	}
	if _, err := s.seek(cur, io.SeekStart); err != nil {
		return false, -1, cur
	}
	end, err := s.seek(0, io.SeekEnd)
	if err != nil {
		return false, -1, cur
	}
	if _, err := s.seek(cur, io.SeekStart); err != nil {
		return false, -1, cur
	}
	if end == 0 && !policy.ZeroLengthSeekable {
		return false, 0, cur
	}
	return true, end, cur
}
