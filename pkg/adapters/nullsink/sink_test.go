package nullsink

import (
	"image"
	"testing"
)

func TestSink(t *testing.T) {
	s := New()
	if s.Enabled() {
		t.Error("expected Enabled to return false")
	}
	if err := s.SaveFrame(0, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Errorf("SaveFrame failed: %v", err)
	}
}
