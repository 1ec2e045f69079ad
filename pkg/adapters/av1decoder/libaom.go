//go:build libaom && cgo

package av1decoder

/*
#cgo pkg-config: aom
#include <aom/aom_decoder.h>
#include <aom/aomdx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_decoder_interface() {
    return aom_codec_av1_dx();
}

static aom_codec_err_t init_decoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface) {
    return aom_codec_dec_init(ctx, iface, NULL, 0);
}

static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

static unsigned int get_width(aom_image_t *img) {
    return img->d_w;
}

static unsigned int get_height(aom_image_t *img) {
    return img->d_h;
}

static int is_i420(aom_image_t *img) {
    return img->fmt == AOM_IMG_FMT_I420;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/user/vplayer/pkg/ports"
)

const available = true

type aomBackend struct {
	codec *C.aom_codec_ctx_t
}

func newBackend() backend {
	return &aomBackend{}
}

func (b *aomBackend) init() error {
	b.codec = (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if b.codec == nil {
		return fmt.Errorf("av1decoder: failed to allocate decoder context")
	}
	C.memset(unsafe.Pointer(b.codec), 0, C.sizeof_aom_codec_ctx_t)

	iface := C.get_av1_decoder_interface()
	if res := C.init_decoder(b.codec, iface); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(b.codec))
		b.codec = nil
		return fmt.Errorf("av1decoder: failed to initialize decoder: %d", res)
	}
	return nil
}

// decode submits data; nil data signals end of stream.
func (b *aomBackend) decode(data []byte) error {
	if b.codec == nil {
		return ErrNotInitialized
	}
	var ptr *C.uint8_t
	if len(data) > 0 {
		ptr = (*C.uint8_t)(unsafe.Pointer(&data[0]))
	}
	if res := C.aom_codec_decode(b.codec, ptr, C.size_t(len(data)), nil); res != C.AOM_CODEC_OK {
		return fmt.Errorf("%w: %d", ErrDecodeFailed, res)
	}
	return nil
}

func (b *aomBackend) frames() ([]*ports.RawFrame, error) {
	if b.codec == nil {
		return nil, ErrNotInitialized
	}
	var (
		out  []*ports.RawFrame
		iter C.aom_codec_iter_t
	)
	for {
		img := C.aom_codec_get_frame(b.codec, &iter)
		if img == nil {
			return out, nil
		}
		if C.is_i420(img) == 0 {
			return out, fmt.Errorf("av1decoder: image format: %w", ports.ErrUnsupported)
		}
		out = append(out, copyImage(img))
	}
}

// copyImage copies the planes of a 4:2:0 picture into Go memory.
func copyImage(img *C.aom_image_t) *ports.RawFrame {
	w := int(C.get_width(img))
	h := int(C.get_height(img))
	f := ports.NewRawFrame(ports.PixelFormatYUV420P, w, h)
	for plane := 0; plane < 3; plane++ {
		rows := h
		if plane > 0 {
			rows = (h + 1) / 2
		}
		stride := int(C.get_stride(img, C.int(plane)))
		src := C.get_plane(img, C.int(plane))
		f.Planes = append(f.Planes, C.GoBytes(unsafe.Pointer(src), C.int(stride*rows)))
		f.Strides = append(f.Strides, stride)
	}
	return f
}

func (b *aomBackend) destroy() {
	if b.codec != nil {
		C.aom_codec_destroy(b.codec)
		C.free(unsafe.Pointer(b.codec))
		b.codec = nil
	}
}
