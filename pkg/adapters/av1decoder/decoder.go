// Package av1decoder provides an AV1 video decoder using libaom.
//
// The libaom binding is compiled only with the libaom build tag (and cgo);
// other builds report ErrUnavailable from Open.
package av1decoder

import (
	"errors"
	"io"

	"github.com/user/vplayer/pkg/ports"
)

var (
	// ErrUnavailable is returned when the package was built without libaom.
	ErrUnavailable = errors.New("av1decoder: built without libaom")

	// ErrNotInitialized is returned when decoder methods are called before Open.
	ErrNotInitialized = errors.New("av1decoder: decoder not initialized")

	// ErrDecodeFailed is returned when libaom rejects a packet.
	ErrDecodeFailed = errors.New("av1decoder: decode failed")
)

// Decoder implements ports.CodecDecoder for AV1.
type Decoder struct {
	impl    backend
	pending []stamp
	ready   []*ports.RawFrame

	draining bool
}

// backend is the libaom binding or its stub.
type backend interface {
	init() error
	decode(data []byte) error
	// frames returns every picture libaom has ready.
	frames() ([]*ports.RawFrame, error)
	destroy()
}

type stamp struct {
	pts, dts int64
	key      bool
}

// New creates an AV1 decoder.
func New() *Decoder {
	return &Decoder{}
}

// Available reports whether the libaom binding was compiled in.
func Available() bool {
	return available
}

// Open initializes libaom. AV1 carries its sequence header in band, so
// only the codec name of cfg is used.
func (d *Decoder) Open(cfg ports.CodecConfig) error {
	impl := newBackend()
	if err := impl.init(); err != nil {
		return err
	}
	d.impl = impl
	return nil
}

// SendPacket decodes one temporal unit. A nil packet flushes libaom.
func (d *Decoder) SendPacket(pkt *ports.Packet) error {
	if d.impl == nil {
		return ErrNotInitialized
	}
	if pkt == nil {
		if !d.draining {
			d.draining = true
			if err := d.impl.decode(nil); err != nil {
				return err
			}
			return d.collect()
		}
		return nil
	}
	if d.draining {
		d.reset()
	}
	if len(pkt.Data) == 0 {
		return ports.ErrInvalidParam
	}
	if err := d.impl.decode(pkt.Data); err != nil {
		return err
	}
	pts := pkt.PTS
	if pts == ports.NoPTS {
		pts = pkt.DTS
	}
	d.pending = append(d.pending, stamp{pts: pts, dts: pkt.DTS, key: pkt.KeyFrame})
	return d.collect()
}

// collect moves ready pictures out of libaom and stamps them in
// submission order.
func (d *Decoder) collect() error {
	frames, err := d.impl.frames()
	if err != nil {
		return err
	}
	for _, f := range frames {
		if len(d.pending) > 0 {
			s := d.pending[0]
			d.pending = d.pending[1:]
			f.PTS, f.PktDTS, f.KeyFrame = s.pts, s.dts, s.key
		}
		d.ready = append(d.ready, f)
	}
	return nil
}

func (d *Decoder) ReceiveFrame() (*ports.RawFrame, error) {
	if d.impl == nil {
		return nil, ErrNotInitialized
	}
	if len(d.ready) == 0 {
		if d.draining {
			d.draining = false
			d.pending = nil
			return nil, io.EOF
		}
		return nil, ports.ErrAgain
	}
	f := d.ready[0]
	d.ready = d.ready[1:]
	return f, nil
}

// Flush reinitializes libaom, dropping every reference picture.
func (d *Decoder) Flush() {
	if d.impl == nil {
		return
	}
	d.reset()
}

func (d *Decoder) reset() {
	d.impl.destroy()
	_ = d.impl.init()
	d.pending = nil
	d.ready = nil
	d.draining = false
}

// Close releases decoder resources. Double close is safe.
func (d *Decoder) Close() error {
	if d.impl != nil {
		d.impl.destroy()
		d.impl = nil
	}
	d.pending = nil
	d.ready = nil
	return nil
}

var _ ports.CodecDecoder = (*Decoder)(nil)
