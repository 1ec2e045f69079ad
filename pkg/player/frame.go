package player

import (
	"image"

	"github.com/user/vplayer/pkg/converter"
	"github.com/user/vplayer/pkg/ports"
)

// VideoFrame is a presented frame. It is only valid during the frame
// callback and must not be retained.
type VideoFrame struct {
	// Width and Height are the upright output dimensions.
	Width  int
	Height int
	// Rotation is the clockwise angle CopyPixels applies.
	Rotation  int
	TimeMills int64
	Format    ports.PixelFormat

	raw *ports.RawFrame
}

func newVideoFrame(raw *ports.RawFrame, rotation int, timeMills int64) *VideoFrame {
	w, h := converter.RotatedSize(raw.Width, raw.Height, rotation)
	return &VideoFrame{
		Width:     w,
		Height:    h,
		Rotation:  rotation,
		TimeMills: timeMills,
		Format:    raw.Format,
		raw:       raw,
	}
}

// Info describes the frame.
func (f *VideoFrame) Info() ports.FrameInfo {
	return ports.FrameInfo{
		Width:       f.Width,
		Height:      f.Height,
		SizeInBytes: f.Width * f.Height * 4,
		TimeMills:   f.TimeMills,
		Format:      f.Format,
	}
}

// Raw returns the underlying packed frame before rotation.
func (f *VideoFrame) Raw() *ports.RawFrame {
	return f.raw
}

// CopyPixels writes the upright picture into dst, which must hold at least
// Info().SizeInBytes bytes.
func (f *VideoFrame) CopyPixels(dst []byte) error {
	return converter.RotateCopy(f.raw, dst, f.Width, f.Height, f.Rotation)
}

// Image returns an upright RGBA copy of the frame.
func (f *VideoFrame) Image() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if err := f.CopyPixels(img.Pix); err != nil {
		return nil, err
	}
	if f.Format == ports.PixelFormatBGRA {
		for i := 0; i+3 < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	return img, nil
}
