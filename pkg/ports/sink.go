package ports

import (
	"image"
)

// FrameSink receives snapshots of presented frames.
type FrameSink interface {
	// Enabled returns true if the sink keeps frames.
	Enabled() bool

	// SaveFrame stores one presented frame.
	SaveFrame(index int, img image.Image) error
}
