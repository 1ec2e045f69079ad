package testsrc

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/user/vplayer/pkg/ports"
)

const (
	videoStream = 0
	audioStream = 1

	// maxPatternSize bounds how much of a source is read as a pattern.
	maxPatternSize = 64 << 10
)

// timeBase is the tick rate of synthesized timestamps.
var timeBase = ports.Rational{Num: 1, Den: 90000}

// Engine implements ports.DecodeEngine over pattern descriptions.
type Engine struct {
	log ports.Logger
}

// New creates a synthetic engine.
func New(log ports.Logger) *Engine {
	e := &Engine{log: log}
	if log != nil {
		e.log = log.WithComponent("testsrc")
	}
	return e
}

// Open reads the pattern from stream and prepares a session.
func (e *Engine) Open(stream ports.InputStream, opts ports.EngineOptions) (ports.DecodeSession, error) {
	if stream == nil {
		return nil, ports.ErrInvalidParam
	}
	data, err := io.ReadAll(io.LimitReader(stream, maxPatternSize))
	if err != nil {
		return nil, ports.NewEngineError("open", "cannot read pattern", err)
	}
	p, err := ParsePattern(data)
	if err != nil {
		return nil, ports.NewEngineError("open", "invalid pattern", err)
	}
	if e.log != nil {
		e.log.Debug("Synthesizing %dx%d %s at %.2f fps for %d ms", p.Width, p.Height, p.Format, p.FPS, p.DurationMs)
	}
	return newSession(p, opts), nil
}

// Session replays a pattern as packets and decodes them into frames.
type Session struct {
	p     Pattern
	info  ports.StreamInfo
	n     int
	audio bool

	next  int
	reads int

	held     []int
	ready    []int
	draining bool
	closed   bool
}

func newSession(p Pattern, opts ports.EngineOptions) *Session {
	n := p.frames()
	info := ports.StreamInfo{
		VideoStreamIndex:  videoStream,
		AudioStreamIndex:  -1,
		TimeBase:          timeBase,
		StreamDuration:    p.DurationMs * 90,
		ContainerDuration: p.DurationMs * 1000,
		AvgFrameRate:      ports.Rational{Num: int64(math.Round(p.FPS * 1000)), Den: 1000},
		FrameCount:        int64(n),
		CodedWidth:        p.Width,
		CodedHeight:       p.Height,
		PixelFormat:       p.pixelFormat(),
		CodecName:         "testsrc",
	}
	if p.Rotate != 0 {
		info.RotateTag = strconv.Itoa(p.Rotate)
	}
	if p.Audio && !opts.DisableAudio {
		info.AudioStreamIndex = audioStream
		info.AudioChannels = 2
		info.AudioSampleRate = 48000
	}
	return &Session{p: p, info: info, n: n, audio: p.Audio}
}

func (s *Session) Info() ports.StreamInfo {
	return s.info
}

func (s *Session) perFrame() int {
	if s.audio {
		return 2
	}
	return 1
}

func (s *Session) pts(index int) int64 {
	return int64(math.Round(float64(index) * float64(timeBase.Den) / s.p.FPS))
}

func (s *Session) ReadPacket() (*ports.Packet, error) {
	if s.closed {
		return nil, ports.ErrInvalidState
	}
	s.reads++
	if every := s.p.ReadErrorEvery; every > 0 && s.reads%every == 0 {
		return nil, ports.NewEngineError("read", "synthetic read error", ports.ErrIO)
	}
	if s.next >= s.n*s.perFrame() {
		return nil, io.EOF
	}

	index := s.next / s.perFrame()
	stream := videoStream
	if s.next%s.perFrame() == 1 {
		stream = audioStream
	}
	s.next++

	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, uint32(index))
	pts := s.pts(index)
	return &ports.Packet{
		StreamIndex: stream,
		PTS:         pts,
		DTS:         pts,
		Duration:    s.pts(index+1) - pts,
		KeyFrame:    stream == audioStream || index%s.p.gop() == 0,
		Data:        data,
	}, nil
}

func (s *Session) SendPacket(pkt *ports.Packet) error {
	if pkt == nil {
		s.ready = append(s.ready, s.held...)
		s.held = nil
		s.draining = true
		return nil
	}
	if pkt.StreamIndex != videoStream || len(pkt.Data) != 4 {
		return ports.NewEngineError("send", "invalid data found when processing input", ports.ErrInvalidParam)
	}
	s.draining = false
	s.held = append(s.held, int(binary.BigEndian.Uint32(pkt.Data)))
	for len(s.held) > s.p.Delay {
		s.ready = append(s.ready, s.held[0])
		s.held = s.held[1:]
	}
	return nil
}

func (s *Session) ReceiveFrame() (*ports.RawFrame, error) {
	if len(s.ready) == 0 {
		if s.draining {
			return nil, io.EOF
		}
		return nil, ports.ErrAgain
	}
	index := s.ready[0]
	s.ready = s.ready[1:]

	f := render(s.p, index)
	f.PTS = s.pts(index)
	f.PktDTS = f.PTS
	f.BestEffortTS = f.PTS
	f.KeyFrame = index%s.p.gop() == 0
	return f, nil
}

// SeekStream moves to the last key frame at or before ts.
func (s *Session) SeekStream(streamIndex int, ts int64) error {
	if s.closed {
		return ports.ErrInvalidState
	}
	if streamIndex != videoStream && streamIndex != audioStream {
		return fmt.Errorf("seek stream %d: %w", streamIndex, ports.ErrInvalidParam)
	}
	index := 0
	if ts > 0 && s.n > 0 {
		index = int(float64(ts) * s.p.FPS / float64(timeBase.Den))
		index = min(index, s.n-1)
		index -= index % s.p.gop()
	}
	s.next = index * s.perFrame()
	return nil
}

func (s *Session) SeekTime(us int64) error {
	return s.SeekStream(videoStream, ports.Rescale(us, ports.MicrosecondTimeBase, timeBase))
}

func (s *Session) Flush() {
	s.held = nil
	s.ready = nil
	s.draining = false
}

func (s *Session) Close() error {
	s.closed = true
	return nil
}

var (
	_ ports.DecodeEngine  = (*Engine)(nil)
	_ ports.DecodeSession = (*Session)(nil)
)
