package mocks

import (
	"io"
	"sort"
	"sync"

	"github.com/user/vplayer/pkg/ports"
)

// DecodeEngine is a mock implementation of ports.DecodeEngine.
type DecodeEngine struct {
	OpenFunc func(stream ports.InputStream, opts ports.EngineOptions) (ports.DecodeSession, error)

	// Session is returned when OpenFunc is nil.
	Session *DecodeSession

	OpenCalls int
}

func (m *DecodeEngine) Open(stream ports.InputStream, opts ports.EngineOptions) (ports.DecodeSession, error) {
	m.OpenCalls++
	if m.OpenFunc != nil {
		return m.OpenFunc(stream, opts)
	}
	return m.Session, nil
}

// DecodeSession replays a fixed packet list. Every video packet sent to
// the decoder yields one RGBA frame carrying the packet timestamps.
type DecodeSession struct {
	mu sync.Mutex

	StreamInfo ports.StreamInfo
	Packets    []*ports.Packet

	// ReadErrors injects an error when the packet at the given index is
	// about to be read. Each entry fires once.
	ReadErrors map[int]error
	// SendErr, when set, is returned for every packet with that timestamp.
	SendErr     error
	SendErrPTS  int64
	SeekErr     error
	FrameFormat ports.PixelFormat

	pos      int
	pending  []*ports.RawFrame
	draining bool

	Seeks      []int64
	FlushCalls int
	Drains     int
	Closed     bool
}

// NewDecodeSession creates a session over packets.
func NewDecodeSession(info ports.StreamInfo, packets []*ports.Packet) *DecodeSession {
	return &DecodeSession{StreamInfo: info, Packets: packets, FrameFormat: ports.PixelFormatRGBA}
}

// ConstantRatePackets builds n video packets on stream 0, step ticks
// apart, with a key frame every gop packets.
func ConstantRatePackets(n int, step int64, gop int) []*ports.Packet {
	pkts := make([]*ports.Packet, n)
	for i := range pkts {
		pts := int64(i) * step
		pkts[i] = &ports.Packet{
			StreamIndex: 0,
			PTS:         pts,
			DTS:         pts,
			Duration:    step,
			KeyFrame:    gop <= 1 || i%gop == 0,
			Data:        []byte{byte(i)},
		}
	}
	return pkts
}

func (m *DecodeSession) Info() ports.StreamInfo {
	return m.StreamInfo
}

func (m *DecodeSession) ReadPacket() (*ports.Packet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.ReadErrors[m.pos]; ok {
		delete(m.ReadErrors, m.pos)
		return nil, err
	}
	if m.pos >= len(m.Packets) {
		return nil, io.EOF
	}
	p := m.Packets[m.pos]
	m.pos++
	return p, nil
}

func (m *DecodeSession) SendPacket(pkt *ports.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pkt == nil {
		m.draining = true
		m.Drains++
		return nil
	}
	if m.SendErr != nil && pkt.PTS == m.SendErrPTS {
		return m.SendErr
	}
	m.draining = false
	w, h := m.StreamInfo.CodedWidth, m.StreamInfo.CodedHeight
	f := ports.NewRawFrame(m.FrameFormat, w, h)
	f.Planes = [][]byte{make([]byte, w*h*4)}
	f.Strides = []int{w * 4}
	f.PTS = pkt.PTS
	f.BestEffortTS = pkt.PTS
	f.PktDTS = pkt.DTS
	f.KeyFrame = pkt.KeyFrame
	m.pending = append(m.pending, f)
	return nil
}

func (m *DecodeSession) ReceiveFrame() (*ports.RawFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) > 0 {
		f := m.pending[0]
		m.pending = m.pending[1:]
		return f, nil
	}
	if m.draining {
		return nil, io.EOF
	}
	return nil, ports.ErrAgain
}

func (m *DecodeSession) SeekStream(streamIndex int, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Seeks = append(m.Seeks, ts)
	if m.SeekErr != nil {
		return m.SeekErr
	}
	// last key frame at or before ts
	i := sort.Search(len(m.Packets), func(i int) bool { return m.Packets[i].PTS > ts })
	target := 0
	for j := i - 1; j >= 0; j-- {
		if m.Packets[j].KeyFrame && m.Packets[j].StreamIndex == streamIndex {
			target = j
			break
		}
	}
	m.pos = target
	m.draining = false
	return nil
}

func (m *DecodeSession) SeekTime(us int64) error {
	ts := ports.Rescale(us, ports.MicrosecondTimeBase, m.StreamInfo.TimeBase)
	return m.SeekStream(m.StreamInfo.VideoStreamIndex, ts)
}

func (m *DecodeSession) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushCalls++
	m.pending = nil
	m.draining = false
}

func (m *DecodeSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Position returns the index of the next packet to be read.
func (m *DecodeSession) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

var (
	_ ports.DecodeEngine  = (*DecodeEngine)(nil)
	_ ports.DecodeSession = (*DecodeSession)(nil)
)
