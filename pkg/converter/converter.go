// Package converter turns decoded frames into packed 32-bit RGBA or BGRA
// pictures, optionally scaled.
package converter

import (
	"fmt"
	"image"
	"math"

	"github.com/user/vplayer/pkg/ports"
	"golang.org/x/image/draw"
)

// Converter converts raw frames to a packed target format. The conversion
// kernel is built on first use and rebuilt whenever the source format or
// dimensions change. A Converter is not safe for concurrent use.
type Converter struct {
	target ports.PixelFormat
	scale  float64
	kernel *kernel

	builds int

	// OnKernelBuild is called each time a kernel is (re)built.
	OnKernelBuild func(src ports.PixelFormat, srcW, srcH, dstW, dstH int)
}

// New creates a converter to target, which must be RGBA or BGRA. A scale
// of 0 or 1 keeps the source size.
func New(target ports.PixelFormat, scale float64) (*Converter, error) {
	if !target.IsPacked32() {
		return nil, fmt.Errorf("converter target %s: %w", target, ports.ErrInvalidParam)
	}
	if scale < 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("converter scale %v: %w", scale, ports.ErrInvalidParam)
	}
	return &Converter{target: target, scale: scale}, nil
}

// Target returns the output pixel format.
func (c *Converter) Target() ports.PixelFormat {
	return c.target
}

// KernelBuilds returns how many kernels have been built so far.
func (c *Converter) KernelBuilds() int {
	return c.builds
}

// OutputSize applies scale to a source size. The result is never smaller
// than 1x1.
func OutputSize(w, h int, scale float64) (int, int) {
	if scale <= 0 || scale == 1 {
		return w, h
	}
	ow := int(math.Floor(float64(w) * scale))
	oh := int(math.Floor(float64(h) * scale))
	return max(ow, 1), max(oh, 1)
}

// Passthrough reports whether frames of format can be presented without
// conversion at the given scale.
func Passthrough(format ports.PixelFormat, scale float64) bool {
	return format.IsPacked32() && (scale <= 0 || scale == 1)
}

// Convert converts frame into the target format. The returned frame
// carries the source timestamps and shares its pixel buffer with the
// converter; it stays valid until the next call.
func (c *Converter) Convert(frame *ports.RawFrame) (*ports.RawFrame, error) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, ports.ErrInvalidParam
	}

	k := c.kernel
	if k == nil || !k.matches(frame) {
		var err error
		k, err = newKernel(frame.Format, frame.Width, frame.Height, c.target, c.scale)
		if err != nil {
			return nil, err
		}
		c.kernel = k
		c.builds++
		if c.OnKernelBuild != nil {
			c.OnKernelBuild(frame.Format, frame.Width, frame.Height, k.dst.Rect.Dx(), k.dst.Rect.Dy())
		}
	}

	if err := k.run(frame); err != nil {
		return nil, err
	}

	out := ports.NewRawFrame(c.target, k.dst.Rect.Dx(), k.dst.Rect.Dy())
	out.Planes = [][]byte{k.dst.Pix}
	out.Strides = []int{k.dst.Stride}
	out.CopyTimestamps(frame)
	return out, nil
}

// kernel owns the scratch buffers and scaler for one source geometry.
type kernel struct {
	srcFormat ports.PixelFormat
	srcW      int
	srcH      int
	target    ports.PixelFormat

	// scratch holds a source that first needs repacking (NV12, BGRA,
	// RGB24).
	scratchRGBA *image.RGBA
	scratchYCC  *image.YCbCr

	dst    *image.RGBA
	scaler draw.Scaler
}

func newKernel(src ports.PixelFormat, w, h int, target ports.PixelFormat, scale float64) (*kernel, error) {
	switch src {
	case ports.PixelFormatYUV420P, ports.PixelFormatYUV422P, ports.PixelFormatYUV444P,
		ports.PixelFormatNV12, ports.PixelFormatRGBA, ports.PixelFormatBGRA,
		ports.PixelFormatRGB24, ports.PixelFormatGray8:
	default:
		return nil, fmt.Errorf("convert from %s: %w", src, ports.ErrUnsupported)
	}

	k := &kernel{srcFormat: src, srcW: w, srcH: h, target: target}
	srcRect := image.Rect(0, 0, w, h)
	switch src {
	case ports.PixelFormatNV12:
		k.scratchYCC = image.NewYCbCr(srcRect, image.YCbCrSubsampleRatio420)
	case ports.PixelFormatBGRA, ports.PixelFormatRGB24:
		k.scratchRGBA = image.NewRGBA(srcRect)
	}

	dw, dh := OutputSize(w, h, scale)
	k.dst = image.NewRGBA(image.Rect(0, 0, dw, dh))
	if dw != w || dh != h {
		k.scaler = draw.BiLinear.NewScaler(dw, dh, w, h)
	}
	return k, nil
}

func (k *kernel) matches(f *ports.RawFrame) bool {
	return k.srcFormat == f.Format && k.srcW == f.Width && k.srcH == f.Height
}

func (k *kernel) run(f *ports.RawFrame) error {
	src, err := k.source(f)
	if err != nil {
		return err
	}
	if k.scaler != nil {
		k.scaler.Scale(k.dst, k.dst.Rect, src, src.Bounds(), draw.Src, nil)
	} else {
		draw.Draw(k.dst, k.dst.Rect, src, image.Point{}, draw.Src)
	}
	if k.target == ports.PixelFormatBGRA {
		swapRB(k.dst.Pix)
	}
	return nil
}

// source exposes the raw frame as an image.Image, repacking into scratch
// buffers where the layout has no image package equivalent.
func (k *kernel) source(f *ports.RawFrame) (image.Image, error) {
	w, h := f.Width, f.Height
	rect := image.Rect(0, 0, w, h)

	switch f.Format {
	case ports.PixelFormatYUV420P, ports.PixelFormatYUV422P, ports.PixelFormatYUV444P:
		if err := checkPlanes(f, 3); err != nil {
			return nil, err
		}
		ratio, cw, ch := chromaLayout(f.Format, w, h)
		if f.Strides[1] != f.Strides[2] ||
			!planeFits(f.Planes[0], f.Strides[0], w, h) ||
			!planeFits(f.Planes[1], f.Strides[1], cw, ch) ||
			!planeFits(f.Planes[2], f.Strides[2], cw, ch) {
			return nil, fmt.Errorf("short %s planes: %w", f.Format, ports.ErrInvalidParam)
		}
		return &image.YCbCr{
			Y:              f.Planes[0],
			Cb:             f.Planes[1],
			Cr:             f.Planes[2],
			YStride:        f.Strides[0],
			CStride:        f.Strides[1],
			SubsampleRatio: ratio,
			Rect:           rect,
		}, nil

	case ports.PixelFormatNV12:
		if err := checkPlanes(f, 2); err != nil {
			return nil, err
		}
		cw, ch := (w+1)/2, (h+1)/2
		if !planeFits(f.Planes[0], f.Strides[0], w, h) || !planeFits(f.Planes[1], f.Strides[1], cw*2, ch) {
			return nil, fmt.Errorf("short nv12 planes: %w", ports.ErrInvalidParam)
		}
		y := k.scratchYCC
		for row := 0; row < h; row++ {
			copy(y.Y[row*y.YStride:row*y.YStride+w], f.Planes[0][row*f.Strides[0]:])
		}
		for row := 0; row < ch; row++ {
			uv := f.Planes[1][row*f.Strides[1]:]
			for col := 0; col < cw; col++ {
				y.Cb[row*y.CStride+col] = uv[col*2]
				y.Cr[row*y.CStride+col] = uv[col*2+1]
			}
		}
		return y, nil

	case ports.PixelFormatRGBA:
		if err := checkPlanes(f, 1); err != nil {
			return nil, err
		}
		if !planeFits(f.Planes[0], f.Strides[0], w*4, h) {
			return nil, fmt.Errorf("short rgba plane: %w", ports.ErrInvalidParam)
		}
		return &image.RGBA{Pix: f.Planes[0], Stride: f.Strides[0], Rect: rect}, nil

	case ports.PixelFormatBGRA:
		if err := checkPlanes(f, 1); err != nil {
			return nil, err
		}
		if !planeFits(f.Planes[0], f.Strides[0], w*4, h) {
			return nil, fmt.Errorf("short bgra plane: %w", ports.ErrInvalidParam)
		}
		dst := k.scratchRGBA
		for row := 0; row < h; row++ {
			copy(dst.Pix[row*dst.Stride:row*dst.Stride+w*4], f.Planes[0][row*f.Strides[0]:])
		}
		swapRB(dst.Pix)
		return dst, nil

	case ports.PixelFormatRGB24:
		if err := checkPlanes(f, 1); err != nil {
			return nil, err
		}
		if !planeFits(f.Planes[0], f.Strides[0], w*3, h) {
			return nil, fmt.Errorf("short rgb24 plane: %w", ports.ErrInvalidParam)
		}
		dst := k.scratchRGBA
		for row := 0; row < h; row++ {
			s := f.Planes[0][row*f.Strides[0]:]
			d := dst.Pix[row*dst.Stride:]
			for col := 0; col < w; col++ {
				d[col*4+0] = s[col*3+0]
				d[col*4+1] = s[col*3+1]
				d[col*4+2] = s[col*3+2]
				d[col*4+3] = 0xff
			}
		}
		return dst, nil

	case ports.PixelFormatGray8:
		if err := checkPlanes(f, 1); err != nil {
			return nil, err
		}
		if !planeFits(f.Planes[0], f.Strides[0], w, h) {
			return nil, fmt.Errorf("short gray plane: %w", ports.ErrInvalidParam)
		}
		return &image.Gray{Pix: f.Planes[0], Stride: f.Strides[0], Rect: rect}, nil
	}
	return nil, fmt.Errorf("convert from %s: %w", f.Format, ports.ErrUnsupported)
}

func chromaLayout(f ports.PixelFormat, w, h int) (image.YCbCrSubsampleRatio, int, int) {
	switch f {
	case ports.PixelFormatYUV422P:
		return image.YCbCrSubsampleRatio422, (w + 1) / 2, h
	case ports.PixelFormatYUV444P:
		return image.YCbCrSubsampleRatio444, w, h
	default:
		return image.YCbCrSubsampleRatio420, (w + 1) / 2, (h + 1) / 2
	}
}

func checkPlanes(f *ports.RawFrame, n int) error {
	if len(f.Planes) < n || len(f.Strides) < n {
		return fmt.Errorf("%s needs %d planes: %w", f.Format, n, ports.ErrInvalidParam)
	}
	return nil
}

// planeFits reports whether a plane holds rows of rowBytes at stride.
func planeFits(p []byte, stride, rowBytes, rows int) bool {
	if stride < rowBytes || rows <= 0 {
		return rows == 0
	}
	return len(p) >= stride*(rows-1)+rowBytes
}

func swapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
