package ports

import (
	"errors"
	"io"
)

// SeekSize is a pseudo whence value. Seek(0, SeekSize) reports the total
// size of the source without moving the read offset.
const SeekSize = 0x10000

// InputStream is a capability-typed byte source consumed by a decode engine.
//
// Read follows the io.Reader contract: io.EOF signals end of data and any
// other error wraps ErrIO. Seek accepts io.SeekStart, io.SeekCurrent,
// io.SeekEnd and SeekSize; sources that are not seekable answer
// ErrNotSeekable and never guess.
type InputStream interface {
	io.ReadSeeker
	io.Closer

	// Seekable reports the capability established once at construction.
	Seekable() bool

	// Size returns the total size in bytes, or -1 when unknown.
	Size() int64

	// Position returns the current read offset.
	Position() int64

	// Valid reports whether the stream can still be read.
	Valid() bool
}

// ProbePolicy tunes the seekability probe performed at construction.
type ProbePolicy struct {
	// ZeroLengthSeekable keeps a source whose size probes to zero marked
	// as seekable.
	ZeroLengthSeekable bool
}

// DefaultProbePolicy returns the probe policy used when none is given.
func DefaultProbePolicy() ProbePolicy {
	return ProbePolicy{ZeroLengthSeekable: true}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
