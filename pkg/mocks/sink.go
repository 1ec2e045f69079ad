package mocks

import (
	"image"
	"sync"

	"github.com/user/vplayer/pkg/ports"
)

// FrameSink is a mock implementation of ports.FrameSink.
type FrameSink struct {
	mu sync.RWMutex

	enabled bool

	Frames map[int]image.Image
}

// NewFrameSink creates a new mock FrameSink.
func NewFrameSink(enabled bool) *FrameSink {
	return &FrameSink{
		enabled: enabled,
		Frames:  make(map[int]image.Image),
	}
}

func (m *FrameSink) Enabled() bool {
	return m.enabled
}

func (m *FrameSink) SaveFrame(index int, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames[index] = img
	return nil
}

// Count returns the number of stored frames.
func (m *FrameSink) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Frames)
}

var _ ports.FrameSink = (*FrameSink)(nil)
