package filesink

import (
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/user/vplayer/pkg/ports"
)

// testBaseDir is a platform-independent base directory for tests
var testBaseDir = filepath.Join("debug", "frames")

func TestSink_Enabled(t *testing.T) {
	sink := New(afero.NewMemMapFs(), testBaseDir)

	if !sink.Enabled() {
		t.Error("expected Enabled to return true")
	}
}

func TestSink_SaveFrame(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink := New(fs, testBaseDir)

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, G: 10, B: 20, A: 255})
	if err := sink.SaveFrame(7, img); err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "frame-000007.png")
	if sink.Path(7) != expectedPath {
		t.Errorf("expected path %s, got %s", expectedPath, sink.Path(7))
	}
	f, err := fs.Open(expectedPath)
	if err != nil {
		t.Fatalf("expected file to be saved at %s: %v", expectedPath, err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	if decoded.Bounds().Dx() != 4 || decoded.Bounds().Dy() != 3 {
		t.Errorf("unexpected bounds %v", decoded.Bounds())
	}
	r, _, _, _ := decoded.At(1, 1).RGBA()
	if r>>8 != 200 {
		t.Errorf("expected red 200, got %d", r>>8)
	}
}

func TestSink_SaveFrameNil(t *testing.T) {
	sink := New(afero.NewMemMapFs(), testBaseDir)
	if err := sink.SaveFrame(0, nil); err != ports.ErrInvalidParam {
		t.Errorf("expected ErrInvalidParam, got %v", err)
	}
}

func TestSink_ReadOnlyFs(t *testing.T) {
	sink := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), testBaseDir)
	if err := sink.SaveFrame(0, image.NewRGBA(image.Rect(0, 0, 1, 1))); err == nil {
		t.Error("expected error on read-only filesystem")
	}
}
