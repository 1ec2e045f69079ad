package testsrc

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/user/vplayer/pkg/ports"
)

// render paints frame index as a raw frame in the pattern's format: a
// background hue that changes per frame, a bar sweeping left to right and
// the frame number.
func render(p Pattern, index int) *ports.RawFrame {
	dc := gg.NewContext(p.Width, p.Height)

	hue := float64(index%360) / 360
	dc.SetColor(hsv(hue, 0.5, 0.8))
	dc.Clear()

	barW := max(p.Width/16, 1)
	x := float64((index * barW) % p.Width)
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(x, 0, float64(barW), float64(p.Height))
	dc.Fill()

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%d", index), float64(p.Width)/2, float64(p.Height)/2, 0.5, 0.5)

	img := toRGBA(dc.Image())
	format := p.pixelFormat()
	f := ports.NewRawFrame(format, p.Width, p.Height)

	switch format {
	case ports.PixelFormatYUV420P:
		ycc := toYCbCr(img)
		f.Planes = [][]byte{ycc.Y, ycc.Cb, ycc.Cr}
		f.Strides = []int{ycc.YStride, ycc.CStride, ycc.CStride}
	case ports.PixelFormatBGRA:
		for i := 0; i+3 < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
		f.Planes = [][]byte{img.Pix}
		f.Strides = []int{img.Stride}
	default:
		f.Planes = [][]byte{img.Pix}
		f.Strides = []int{img.Stride}
	}
	return f
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return dst
}

func toYCbCr(src *image.RGBA) *image.YCbCr {
	b := src.Bounds()
	dst := image.NewYCbCr(b, image.YCbCrSubsampleRatio420)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			o := src.PixOffset(x, y)
			yy, cb, cr := color.RGBToYCbCr(src.Pix[o], src.Pix[o+1], src.Pix[o+2])
			dst.Y[dst.YOffset(x, y)] = yy
			// the top-left sample of each 2x2 block carries the chroma
			if x%2 == 0 && y%2 == 0 {
				c := dst.COffset(x, y)
				dst.Cb[c] = cb
				dst.Cr[c] = cr
			}
		}
	}
	return dst
}

func hsv(h, s, v float64) color.Color {
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}
