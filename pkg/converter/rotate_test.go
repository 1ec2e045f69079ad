package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/vplayer/pkg/ports"
)

func indexFrame(w, h int) *ports.RawFrame {
	return rgbaFrame(w, h, func(x, y int) [4]byte { return [4]byte{byte(x), byte(y), 0, 255} })
}

func packed(w, h int, pix []byte) *ports.RawFrame {
	f := ports.NewRawFrame(ports.PixelFormatRGBA, w, h)
	f.Planes = [][]byte{pix}
	f.Strides = []int{w * 4}
	return f
}

func TestNormalize360(t *testing.T) {
	tests := map[int]int{0: 0, 90: 90, -90: 270, 360: 0, -360: 0, 450: 90, -270: 90, 719: 359}
	for in, want := range tests {
		if got := Normalize360(in); got != want {
			t.Errorf("Normalize360(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRotateCopy_Mapping(t *testing.T) {
	src := indexFrame(3, 2)

	dst := make([]byte, 2*3*4)
	require.NoError(t, RotateCopy(src, dst, 2, 3, 90))
	// source (x=0,y=0) lands at (srcH-1-0, 0) = (1, 0)
	assert.Equal(t, []byte{0, 0}, dst[(0*2+1)*4:(0*2+1)*4+2])
	// source (x=2,y=1) lands at (0, 2)
	assert.Equal(t, []byte{2, 1}, dst[(2*2+0)*4:(2*2+0)*4+2])

	dst = make([]byte, 3*2*4)
	require.NoError(t, RotateCopy(src, dst, 3, 2, 180))
	assert.Equal(t, []byte{2, 1}, dst[0:2])

	dst = make([]byte, 2*3*4)
	require.NoError(t, RotateCopy(src, dst, 2, 3, 270))
	// source (x=0,y=0) lands at (0, srcW-1) = (0, 2)
	assert.Equal(t, []byte{0, 0}, dst[(2*2+0)*4:(2*2+0)*4+2])
}

func TestRotateCopy_FourQuarterTurnsIsIdentity(t *testing.T) {
	w, h := 5, 3
	orig := indexFrame(w, h)
	cur := orig
	for i := 0; i < 4; i++ {
		ow, oh := RotatedSize(cur.Width, cur.Height, 90)
		buf := make([]byte, ow*oh*4)
		require.NoError(t, RotateCopy(cur, buf, ow, oh, 90))
		cur = packed(ow, oh, buf)
	}
	assert.Equal(t, orig.Planes[0], cur.Planes[0])

	buf := make([]byte, w*h*4)
	require.NoError(t, RotateCopy(orig, buf, w, h, 0))
	assert.Equal(t, orig.Planes[0], buf)
}

func TestRotateCopy_Rejects(t *testing.T) {
	src := indexFrame(4, 2)
	dst := make([]byte, 4*2*4)

	assert.ErrorIs(t, RotateCopy(src, dst, 4, 2, 45), ports.ErrInvalidParam)
	assert.ErrorIs(t, RotateCopy(src, dst, 4, 2, 90), ports.ErrInvalidParam)
	assert.ErrorIs(t, RotateCopy(src, dst[:8], 4, 2, 0), ports.ErrInvalidParam)
	assert.ErrorIs(t, RotateCopy(nil, dst, 4, 2, 0), ports.ErrInvalidParam)
}
