// Package h264decoder decodes H.264 packets with an external ffmpeg
// process. Packets are written to ffmpeg's stdin as an Annex B elementary
// stream and planar YUV 4:2:0 pictures are read back from its stdout.
package h264decoder

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/user/vplayer/pkg/ports"
)

var (
	// ErrNotInitialized is returned when decoder methods are called before Open.
	ErrNotInitialized = errors.New("h264decoder: decoder not initialized")

	// ErrDecodeFailed is returned when the ffmpeg process fails.
	ErrDecodeFailed = errors.New("h264decoder: decode failed")

	// ErrFFmpegNotFound is returned when ffmpeg cannot be located.
	ErrFFmpegNotFound = errors.New("h264decoder: ffmpeg not found in PATH")
)

// customFFmpegPath overrides the ffmpeg lookup when set.
var customFFmpegPath string

// SetFFmpegPath sets a custom ffmpeg binary used by every decoder opened
// afterwards.
func SetFFmpegPath(path string) {
	customFFmpegPath = path
}

// IsAvailable reports whether an ffmpeg binary can be found.
func IsAvailable() bool {
	_, err := findFFmpeg()
	return err == nil
}

// Decoder implements ports.CodecDecoder for H.264.
type Decoder struct {
	mu sync.Mutex

	ffmpegPath string
	cfg        ports.CodecConfig
	prefix     []byte
	frameSize  int

	proc     *process
	pending  []stamp
	draining bool
	opened   bool
}

// stamp carries the timestamps of one submitted packet until a picture is
// matched to it.
type stamp struct {
	pts, dts int64
	key      bool
}

// New creates an H.264 decoder.
func New() *Decoder {
	return &Decoder{}
}

// Open locates ffmpeg and prepares the parameter sets. The process starts
// with the first packet.
func (d *Decoder) Open(cfg ports.CodecConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("h264decoder: size %dx%d: %w", cfg.Width, cfg.Height, ports.ErrInvalidParam)
	}
	switch cfg.LengthSize {
	case 0, 1, 2, 4:
	default:
		return fmt.Errorf("h264decoder: length size %d: %w", cfg.LengthSize, ports.ErrInvalidParam)
	}
	path, err := findFFmpeg()
	if err != nil {
		return err
	}

	d.ffmpegPath = path
	d.cfg = cfg
	d.prefix = annexBParameterSets(cfg.ParameterSets)
	d.frameSize = yuv420Size(cfg.Width, cfg.Height)
	d.opened = true
	return nil
}

// SendPacket writes one packet to ffmpeg. A nil packet closes the input so
// the remaining pictures can be drained.
func (d *Decoder) SendPacket(pkt *ports.Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened {
		return ErrNotInitialized
	}
	if pkt == nil {
		if !d.draining {
			d.draining = true
			if d.proc != nil {
				d.proc.closeInput()
			}
		}
		return nil
	}
	if d.draining {
		d.stopLocked()
	}
	if d.proc == nil {
		proc, err := startProcess(d.ffmpegPath, d.cfg.Width, d.cfg.Height, d.frameSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		d.proc = proc
	}

	data := pkt.Data
	if d.cfg.LengthSize > 0 {
		data = avccToAnnexB(data, d.cfg.LengthSize)
	}
	if pkt.KeyFrame && len(d.prefix) > 0 {
		data = append(append(make([]byte, 0, len(d.prefix)+len(data)), d.prefix...), data...)
	}
	if err := d.proc.write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	pts := pkt.PTS
	if pts == ports.NoPTS {
		pts = pkt.DTS
	}
	d.pending = append(d.pending, stamp{pts: pts, dts: pkt.DTS, key: pkt.KeyFrame})
	return nil
}

// ReceiveFrame returns the next picture. While draining it waits for
// ffmpeg to emit the remaining pictures and then returns io.EOF.
func (d *Decoder) ReceiveFrame() (*ports.RawFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened {
		return nil, ErrNotInitialized
	}
	if d.proc == nil {
		if d.draining {
			d.draining = false
			return nil, io.EOF
		}
		return nil, ports.ErrAgain
	}

	buf, ok := d.proc.next(d.draining)
	if buf == nil {
		if !ok {
			err := d.proc.wait()
			d.proc = nil
			d.pending = nil
			if d.draining {
				d.draining = false
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
				}
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		return nil, ports.ErrAgain
	}
	return d.frame(buf), nil
}

// frame wraps a picture buffer and attaches the smallest pending
// presentation timestamp, which matches ffmpeg's output order.
func (d *Decoder) frame(buf []byte) *ports.RawFrame {
	w, h := d.cfg.Width, d.cfg.Height
	cw, ch := (w+1)/2, (h+1)/2
	f := ports.NewRawFrame(ports.PixelFormatYUV420P, w, h)
	f.Planes = [][]byte{buf[:w*h], buf[w*h : w*h+cw*ch], buf[w*h+cw*ch:]}
	f.Strides = []int{w, cw, cw}

	if len(d.pending) > 0 {
		sort.SliceStable(d.pending, func(i, j int) bool { return d.pending[i].pts < d.pending[j].pts })
		s := d.pending[0]
		d.pending = d.pending[1:]
		f.PTS = s.pts
		f.PktDTS = s.dts
		f.KeyFrame = s.key
	}
	return f
}

// Flush stops the running process and drops every buffered picture.
func (d *Decoder) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Decoder) stopLocked() {
	if d.proc != nil {
		d.proc.kill()
		d.proc = nil
	}
	d.pending = nil
	d.draining = false
}

// Close stops ffmpeg. The decoder must be opened again before reuse.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.opened = false
	return nil
}

func yuv420Size(w, h int) int {
	cw, ch := (w+1)/2, (h+1)/2
	return w*h + 2*cw*ch
}

var _ ports.CodecDecoder = (*Decoder)(nil)
