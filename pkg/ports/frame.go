package ports

import "math"

// NoPTS marks an absent timestamp.
const NoPTS int64 = math.MinInt64

// PixelFormat identifies the memory layout of a decoded picture.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatRGBA
	PixelFormatBGRA
	PixelFormatRGB24
	PixelFormatYUV420P
	PixelFormatYUV422P
	PixelFormatYUV444P
	PixelFormatNV12
	PixelFormatGray8
)

// String returns the conventional name of the format.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA:
		return "rgba"
	case PixelFormatBGRA:
		return "bgra"
	case PixelFormatRGB24:
		return "rgb24"
	case PixelFormatYUV420P:
		return "yuv420p"
	case PixelFormatYUV422P:
		return "yuv422p"
	case PixelFormatYUV444P:
		return "yuv444p"
	case PixelFormatNV12:
		return "nv12"
	case PixelFormatGray8:
		return "gray"
	default:
		return "unknown"
	}
}

// ParsePixelFormat parses a format name. Unknown names map to
// PixelFormatUnknown.
func ParsePixelFormat(s string) PixelFormat {
	switch s {
	case "rgba":
		return PixelFormatRGBA
	case "bgra":
		return PixelFormatBGRA
	case "rgb24":
		return PixelFormatRGB24
	case "yuv420p":
		return PixelFormatYUV420P
	case "yuv422p":
		return PixelFormatYUV422P
	case "yuv444p":
		return PixelFormatYUV444P
	case "nv12":
		return PixelFormatNV12
	case "gray":
		return PixelFormatGray8
	default:
		return PixelFormatUnknown
	}
}

// IsPacked32 reports whether the format stores one 4-byte pixel per element
// in a single plane.
func (f PixelFormat) IsPacked32() bool {
	return f == PixelFormatRGBA || f == PixelFormatBGRA
}

// Rational is a fraction used for timebases and frame rates.
type Rational struct {
	Num int64
	Den int64
}

// Float returns the value of the fraction, or 0 for a zero denominator.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns Den/Num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// Rescale converts v expressed in units of from into units of to, rounding
// to nearest.
func Rescale(v int64, from, to Rational) int64 {
	if from.Den == 0 || to.Num == 0 {
		return 0
	}
	num := float64(v) * float64(from.Num) * float64(to.Den)
	den := float64(from.Den) * float64(to.Num)
	return int64(math.Round(num / den))
}

// MicrosecondTimeBase is the global time unit used by time-based seeks.
var MicrosecondTimeBase = Rational{Num: 1, Den: 1000000}

// Packet is one demuxed, still encoded access unit.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	KeyFrame    bool
	Data        []byte
}

// RawFrame is a decoded picture. Planes and Strides follow the layout
// implied by Format; packed formats use a single plane.
type RawFrame struct {
	Format  PixelFormat
	Width   int
	Height  int
	Planes  [][]byte
	Strides []int

	PTS          int64
	PktDTS       int64
	BestEffortTS int64
	KeyFrame     bool
}

// NewRawFrame returns a frame with all timestamps marked absent.
func NewRawFrame(format PixelFormat, width, height int) *RawFrame {
	return &RawFrame{
		Format:       format,
		Width:        width,
		Height:       height,
		PTS:          NoPTS,
		PktDTS:       NoPTS,
		BestEffortTS: NoPTS,
	}
}

// CopyTimestamps copies every timestamp field from src.
func (f *RawFrame) CopyTimestamps(src *RawFrame) {
	f.PTS = src.PTS
	f.PktDTS = src.PktDTS
	f.BestEffortTS = src.BestEffortTS
	f.KeyFrame = src.KeyFrame
}
