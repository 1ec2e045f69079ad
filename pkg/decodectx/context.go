// Package decodectx wraps a decode session with the metadata and timebase
// bookkeeping the player needs.
package decodectx

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/user/vplayer/pkg/adapters/logger"
	"github.com/user/vplayer/pkg/converter"
	"github.com/user/vplayer/pkg/ports"
)

// Options tunes what is probed at open.
type Options struct {
	// Mute skips audio stream discovery.
	Mute bool
	// ProbeKeyFrames measures the gap between the first key frames.
	ProbeKeyFrames bool
	// ProbeDecoderFPS decodes a few frames to measure decoder throughput.
	ProbeDecoderFPS bool
	// Logger is optional.
	Logger ports.Logger
}

const (
	keyFrameProbeCount = 3
	fpsProbeFrames     = 10
)

// Context owns one decode session. Timebase and duration are fixed once
// the context is built.
type Context struct {
	session ports.DecodeSession
	log     ports.Logger

	videoIndex int
	audioIndex int

	timeBase        ports.Rational
	durationTS      int64
	durationSeconds float64
	containerUS     int64

	frameRate      float64
	declaredFrames int64
	frameCount     int64

	rotation int
	codedW   int
	codedH   int
	width    int
	height   int

	pixelFormat ports.PixelFormat
	codecName   string

	audioChannels   int
	audioSampleRate int

	keyFrameGap int64
	decoderFPS  float64
}

// Open opens a session on stream with engine and loads its properties.
// The stream stays owned by the caller.
func Open(engine ports.DecodeEngine, stream ports.InputStream, opts Options) (*Context, error) {
	if engine == nil || stream == nil {
		return nil, ports.ErrInvalidParam
	}
	session, err := engine.Open(stream, ports.EngineOptions{DisableAudio: opts.Mute})
	if err != nil {
		return nil, err
	}
	return New(session, opts)
}

// New builds a context over an already opened session. The context takes
// ownership of the session and closes it if loading fails.
func New(session ports.DecodeSession, opts Options) (*Context, error) {
	if session == nil {
		return nil, ports.ErrInvalidParam
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	c := &Context{session: session, log: log, keyFrameGap: -1}
	if err := c.loadProperties(opts); err != nil {
		session.Close()
		return nil, err
	}
	return c, nil
}

func (c *Context) loadProperties(opts Options) error {
	info := c.session.Info()
	if info.VideoStreamIndex < 0 {
		return fmt.Errorf("no video stream: %w", ports.ErrUnsupported)
	}
	if info.TimeBase.Num <= 0 || info.TimeBase.Den <= 0 {
		return fmt.Errorf("video timebase %d/%d: %w", info.TimeBase.Num, info.TimeBase.Den, ports.ErrInvalidParam)
	}

	c.videoIndex = info.VideoStreamIndex
	c.audioIndex = info.AudioStreamIndex
	if opts.Mute {
		c.audioIndex = -1
	}
	c.timeBase = info.TimeBase
	c.containerUS = info.ContainerDuration

	switch {
	case info.StreamDuration > 0:
		c.durationTS = info.StreamDuration
	case info.ContainerDuration > 0:
		c.durationTS = ports.Rescale(info.ContainerDuration, ports.MicrosecondTimeBase, c.timeBase)
	default:
		c.log.Error("Unable to get video duration")
		return ports.ErrDurationUnknown
	}
	c.durationSeconds = float64(c.durationTS) * c.timeBase.Float()

	c.frameRate = info.AvgFrameRate.Float()
	c.declaredFrames = info.FrameCount
	c.frameCount = int64(float64(c.durationTS) * c.timeBase.Float() * c.frameRate)

	c.rotation = streamRotation(info)
	c.codedW, c.codedH = info.CodedWidth, info.CodedHeight
	c.width, c.height = c.codedW, c.codedH
	if r := abs(c.rotation); r == 90 || r == 270 {
		c.width, c.height = c.codedH, c.codedW
	}

	c.pixelFormat = info.PixelFormat
	c.codecName = info.CodecName
	if c.codecName == "" {
		c.codecName = "unknown"
	}
	if c.audioIndex >= 0 {
		c.audioChannels = info.AudioChannels
		c.audioSampleRate = info.AudioSampleRate
	}

	if opts.ProbeKeyFrames {
		c.keyFrameGap = c.probeKeyFrameGap()
		if err := c.SeekToStart(); err != nil {
			return err
		}
	}
	if opts.ProbeDecoderFPS {
		c.log.Debug("Start test decoder fps")
		c.decoderFPS = c.probeDecoderFPS()
	}

	c.log.Debug("Video properties: %dx%d, %.3f fps, %.3f s, rotation %d, codec %s",
		c.width, c.height, c.frameRate, c.durationSeconds, c.rotation, c.codecName)
	return c.SeekToStart()
}

// probeKeyFrameGap reads packets until a few key frames have been seen and
// returns the mean gap between them in timebase ticks, or -1.
func (c *Context) probeKeyFrameGap() int64 {
	var first, last int64
	seen := 0
	for seen < keyFrameProbeCount {
		pkt, err := c.session.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if seen == 0 {
				c.log.Debug("Key frame probe failed: %s", ports.Diagnostic(err))
				return -1
			}
			break
		}
		if pkt.StreamIndex != c.videoIndex {
			continue
		}
		if pkt.PTS == ports.NoPTS {
			return -1
		}
		if pkt.KeyFrame {
			if seen == 0 {
				first = pkt.PTS
			}
			last = pkt.PTS
			seen++
			c.log.Debug("Check key frame: %.2f (index: %d)", float64(pkt.PTS)*c.timeBase.Float(), seen-1)
		}
	}
	if seen <= 1 {
		return -1
	}
	return (last - first) / int64(seen-1)
}

// probeDecoderFPS decodes up to ten frames and reports frames per second
// of wall-clock time, or 0 on any failure.
func (c *Context) probeDecoderFPS() float64 {
	if err := c.SeekToStart(); err != nil {
		return 0
	}
	start := time.Now()
	frames := 0
	for frames < fpsProbeFrames {
		pkt, err := c.session.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.log.Debug("Decoder fps probe read failed: %s", ports.Diagnostic(err))
			return 0
		}
		if pkt.StreamIndex != c.videoIndex {
			continue
		}
		if err := c.session.SendPacket(pkt); err != nil {
			c.log.Debug("Decoder fps probe send failed: %s", ports.Diagnostic(err))
			return 0
		}
		for frames < fpsProbeFrames {
			_, err := c.session.ReceiveFrame()
			if errors.Is(err, ports.ErrAgain) {
				break
			}
			if err != nil {
				c.log.Debug("Decoder fps probe receive failed: %s", ports.Diagnostic(err))
				return 0
			}
			frames++
		}
	}
	elapsed := time.Since(start).Seconds()
	if frames == 0 || elapsed <= 0 {
		return 0
	}
	return float64(frames) / elapsed
}

// Close releases the session.
func (c *Context) Close() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

// VideoInfo returns the metadata snapshot for callers.
func (c *Context) VideoInfo() ports.VideoInfo {
	total := c.declaredFrames
	if total <= 0 {
		total = c.frameCount
	}
	return ports.VideoInfo{
		DurationMills:   c.DurationMills(),
		TotalFrames:     total,
		VideoWidth:      c.width,
		VideoHeight:     c.height,
		AudioChannels:   c.audioChannels,
		AudioSampleRate: c.audioSampleRate,
		Fps:             c.frameRate,
		VideoCodec:      c.codecName,
		Rotation:        c.rotation,
		DecoderFPS:      c.decoderFPS,
		HasAudio:        c.audioIndex >= 0,
		PixelFormat:     c.pixelFormat,
	}
}

// DurationMills is the duration in milliseconds, rounded to nearest. The
// metadata snapshot uses the same value.
func (c *Context) DurationMills() int64 {
	return int64(math.Round(c.durationSeconds * 1000))
}

// DurationSeconds returns the duration in seconds.
func (c *Context) DurationSeconds() float64 { return c.durationSeconds }

// DurationTS returns the duration in stream timebase units.
func (c *Context) DurationTS() int64 { return c.durationTS }

// TimeBase returns the video stream timebase.
func (c *Context) TimeBase() ports.Rational { return c.timeBase }

// VideoStreamIndex returns the selected video stream.
func (c *Context) VideoStreamIndex() int { return c.videoIndex }

// AudioStreamIndex returns the first audio stream, or -1.
func (c *Context) AudioStreamIndex() int { return c.audioIndex }

// FrameRate returns the average frame rate.
func (c *Context) FrameRate() float64 { return c.frameRate }

// FrameCount returns the frame count estimated from duration and rate.
func (c *Context) FrameCount() int64 { return c.frameCount }

// Rotation returns the stream rotation in (-360, 360).
func (c *Context) Rotation() int { return c.rotation }

// OutputRotation is the clockwise angle a caller applies when copying
// pixels to show the picture upright.
func (c *Context) OutputRotation() int { return converter.Normalize360(-c.rotation) }

// Size returns the display adjusted dimensions.
func (c *Context) Size() (int, int) { return c.width, c.height }

// CodedSize returns the dimensions of decoded pictures.
func (c *Context) CodedSize() (int, int) { return c.codedW, c.codedH }

// PixelFormat returns the decoder output format.
func (c *Context) PixelFormat() ports.PixelFormat { return c.pixelFormat }

// CodecName returns the codec display name.
func (c *Context) CodecName() string { return c.codecName }

// KeyFrameGap returns the mean key frame interval in ticks, -1 if unknown.
func (c *Context) KeyFrameGap() int64 { return c.keyFrameGap }

// DecoderFPS returns the measured decoder throughput, 0 if not probed.
func (c *Context) DecoderFPS() float64 { return c.decoderFPS }

// ReadPacket returns the next demuxed packet.
func (c *Context) ReadPacket() (*ports.Packet, error) { return c.session.ReadPacket() }

// SendPacket feeds the video decoder. nil drains it.
func (c *Context) SendPacket(pkt *ports.Packet) error { return c.session.SendPacket(pkt) }

// ReceiveFrame pulls the next decoded frame.
func (c *Context) ReceiveFrame() (*ports.RawFrame, error) { return c.session.ReceiveFrame() }

// Flush drops buffered decoder frames.
func (c *Context) Flush() {
	c.session.Flush()
}

// SeekToStart rewinds to the first key frame and flushes the decoder.
func (c *Context) SeekToStart() error {
	if err := c.session.SeekStream(c.videoIndex, 0); err != nil {
		return fmt.Errorf("seek to start: %w", err)
	}
	c.session.Flush()
	c.log.Debug("Video stream flushed")
	return nil
}

// SeekDurationUS is the duration used to resolve fractional seeks: the
// container duration when known, else the stream duration.
func (c *Context) SeekDurationUS() int64 {
	if c.containerUS > 0 {
		return c.containerUS
	}
	return ports.Rescale(c.durationTS, c.timeBase, ports.MicrosecondTimeBase)
}

// SeekTime seeks backward to the key frame at or before us microseconds.
func (c *Context) SeekTime(us int64) error {
	if err := c.session.SeekTime(us); err != nil {
		return fmt.Errorf("seek to %d us: %w", us, err)
	}
	return nil
}

// FrameTimestamp picks the best available timestamp of f: best effort,
// then pts, then packet dts, else zero. Negative values clamp to zero.
func FrameTimestamp(f *ports.RawFrame) int64 {
	ts := int64(0)
	switch {
	case f.BestEffortTS != ports.NoPTS:
		ts = f.BestEffortTS
	case f.PTS != ports.NoPTS:
		ts = f.PTS
	case f.PktDTS != ports.NoPTS:
		ts = f.PktDTS
	}
	return max(ts, 0)
}

// ToMicros converts stream ticks to microseconds.
func (c *Context) ToMicros(ts int64) int64 {
	return ports.Rescale(ts, c.timeBase, ports.MicrosecondTimeBase)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
