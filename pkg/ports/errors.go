package ports

import (
	"errors"
	"fmt"
)

// Error kinds shared by every component. End of stream is io.EOF.
var (
	// ErrInvalidParam is returned for nil or out-of-range input.
	ErrInvalidParam = errors.New("vplayer: invalid parameter")

	// ErrInvalidState is returned when an operation is not legal in the
	// current lifecycle state (double open, resume while running, ...).
	ErrInvalidState = errors.New("vplayer: invalid state")

	// ErrIO is returned when a byte source read or seek fails.
	ErrIO = errors.New("vplayer: i/o error")

	// ErrNotSeekable is returned by sources that cannot reposition.
	ErrNotSeekable = errors.New("vplayer: source is not seekable")

	// ErrSizeUnknown is returned for a SeekSize query when the total size
	// cannot be established.
	ErrSizeUnknown = errors.New("vplayer: source size unknown")

	// ErrAgain is returned by a decoder that needs more input before it can
	// emit another frame.
	ErrAgain = errors.New("vplayer: decoder needs more input")

	// ErrCancelled reports a lifecycle-driven stop. It is not a failure.
	ErrCancelled = errors.New("vplayer: cancelled")

	// ErrDurationUnknown is returned by seeks on streams without a duration.
	ErrDurationUnknown = errors.New("vplayer: duration unknown")

	// ErrUnsupported is returned for pixel formats, codecs or platforms the
	// implementation cannot handle.
	ErrUnsupported = errors.New("vplayer: unsupported")
)

// EngineError is an opaque failure surfaced from a decode engine. It keeps
// the engine's own diagnostic text.
type EngineError struct {
	Op         string
	Diagnostic string
	Err        error
}

// NewEngineError creates an EngineError for the given operation.
func NewEngineError(op, diagnostic string, err error) *EngineError {
	return &EngineError{Op: op, Diagnostic: diagnostic, Err: err}
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Diagnostic)
	}
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Diagnostic, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Diagnostic extracts the engine diagnostic from err, falling back to the
// error text itself.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var ee *EngineError
	if errors.As(err, &ee) && ee.Diagnostic != "" {
		return ee.Diagnostic
	}
	return err.Error()
}

// IsError reports whether err is an actual failure. End of stream, ErrAgain
// and cancellation are control-flow signals.
func IsError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrCancelled) && !errors.Is(err, ErrAgain) && !isEOF(err)
}
