package converter

import (
	"fmt"

	"github.com/user/vplayer/pkg/ports"
)

// Normalize360 maps any angle in degrees into [0, 360).
func Normalize360(a int) int {
	a %= 360
	if a < 0 {
		a += 360
	}
	return a
}

// RotatedSize returns the output size of a w x h picture rotated by
// rotation degrees.
func RotatedSize(w, h, rotation int) (int, int) {
	if r := Normalize360(rotation); r == 90 || r == 270 {
		return h, w
	}
	return w, h
}

// RotateCopy copies a packed 4-byte frame into dst, rotated clockwise by
// rotation degrees, as a tightly packed outW x outH picture. Only 0, 90,
// 180 and 270 are accepted.
func RotateCopy(src *ports.RawFrame, dst []byte, outW, outH, rotation int) error {
	if src == nil || !src.Format.IsPacked32() || len(src.Planes) == 0 || len(src.Strides) == 0 {
		return ports.ErrInvalidParam
	}
	switch rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("rotation %d: %w", rotation, ports.ErrInvalidParam)
	}

	sw, sh := src.Width, src.Height
	if ew, eh := RotatedSize(sw, sh, rotation); ew != outW || eh != outH {
		return fmt.Errorf("output %dx%d does not match %dx%d rotated by %d: %w",
			outW, outH, sw, sh, rotation, ports.ErrInvalidParam)
	}
	if len(dst) < outW*outH*4 {
		return fmt.Errorf("destination holds %d bytes, need %d: %w", len(dst), outW*outH*4, ports.ErrInvalidParam)
	}
	stride := src.Strides[0]
	pix := src.Planes[0]
	if !planeFits(pix, stride, sw*4, sh) {
		return fmt.Errorf("short source plane: %w", ports.ErrInvalidParam)
	}

	if rotation == 0 {
		for y := 0; y < sh; y++ {
			copy(dst[y*outW*4:(y+1)*outW*4], pix[y*stride:])
		}
		return nil
	}

	for y := 0; y < sh; y++ {
		row := pix[y*stride:]
		for x := 0; x < sw; x++ {
			var dx, dy int
			switch rotation {
			case 90:
				dx, dy = sh-1-y, x
			case 180:
				dx, dy = sw-1-x, sh-1-y
			case 270:
				dx, dy = y, sw-1-x
			}
			o := (dy*outW + dx) * 4
			copy(dst[o:o+4], row[x*4:x*4+4])
		}
	}
	return nil
}
