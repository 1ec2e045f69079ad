package mocks

import (
	"io"
	"sync"

	"github.com/user/vplayer/pkg/ports"
)

// CodecDecoder is a mock ports.CodecDecoder. Every packet yields one
// YUV420P frame of the configured size whose luma plane is filled with the
// packet's second payload byte.
type CodecDecoder struct {
	mu sync.Mutex

	OpenErr error
	SendErr error

	Config     ports.CodecConfig
	Packets    []*ports.Packet
	FlushCalls int
	Closed     bool

	pending  []*ports.RawFrame
	draining bool
}

// CodecDecoderFactory returns a factory that always hands out dec.
func CodecDecoderFactory(dec *CodecDecoder) ports.CodecDecoderFactory {
	return func(codec string) (ports.CodecDecoder, error) {
		return dec, nil
	}
}

func (m *CodecDecoder) Open(cfg ports.CodecConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Config = cfg
	return m.OpenErr
}

func (m *CodecDecoder) SendPacket(pkt *ports.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pkt == nil {
		m.draining = true
		return nil
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Packets = append(m.Packets, pkt)

	w, h := m.Config.Width, m.Config.Height
	f := ports.NewRawFrame(ports.PixelFormatYUV420P, w, h)
	cw, ch := (w+1)/2, (h+1)/2
	f.Planes = [][]byte{make([]byte, w*h), make([]byte, cw*ch), make([]byte, cw*ch)}
	f.Strides = []int{w, cw, cw}
	var luma byte
	if len(pkt.Data) > 1 {
		luma = pkt.Data[1]
	}
	for i := range f.Planes[0] {
		f.Planes[0][i] = luma
	}
	for _, p := range f.Planes[1:] {
		for i := range p {
			p[i] = 128
		}
	}
	f.PTS = pkt.PTS
	f.PktDTS = pkt.DTS
	f.KeyFrame = pkt.KeyFrame
	m.pending = append(m.pending, f)
	return nil
}

func (m *CodecDecoder) ReceiveFrame() (*ports.RawFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		if m.draining {
			m.draining = false
			return nil, io.EOF
		}
		return nil, ports.ErrAgain
	}
	f := m.pending[0]
	m.pending = m.pending[1:]
	return f, nil
}

func (m *CodecDecoder) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushCalls++
	m.pending = nil
	m.draining = false
}

func (m *CodecDecoder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// SentPackets returns a snapshot of the packets received so far.
func (m *CodecDecoder) SentPackets() []*ports.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ports.Packet(nil), m.Packets...)
}

var _ ports.CodecDecoder = (*CodecDecoder)(nil)
