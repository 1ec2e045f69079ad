package mp4engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// errShortBox is returned when a box payload is smaller than its fields.
var errShortBox = errors.New("mp4engine: truncated box")

// movieMeta holds the header fields mp4ff does not keep after decoding:
// the movie duration and each track's display matrix.
type movieMeta struct {
	timescale uint32
	duration  uint64
	tracks    map[uint32]trackMeta
}

type trackMeta struct {
	handler    string
	matrix     [9]int32
	hasMatrix  bool
	width      int
	height     int
	channels   int
	sampleRate int
}

// durationMicros returns the mvhd duration in microseconds, 0 if unknown.
func (m movieMeta) durationMicros() int64 {
	if m.timescale == 0 || m.duration == 0 {
		return 0
	}
	return int64(m.duration * 1000000 / uint64(m.timescale))
}

type boxHeader struct {
	typ        string
	size       int64 // including header, -1 when the box extends to EOF
	headerSize int64
}

// readBoxHeader reads one box header from r.
func readBoxHeader(r io.Reader) (boxHeader, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return boxHeader{}, err
	}
	h := boxHeader{
		typ:        string(hdr[4:8]),
		size:       int64(binary.BigEndian.Uint32(hdr[0:4])),
		headerSize: 8,
	}
	switch h.size {
	case 0:
		h.size = -1
	case 1:
		var large [8]byte
		if _, err := io.ReadFull(r, large[:]); err != nil {
			return boxHeader{}, err
		}
		h.size = int64(binary.BigEndian.Uint64(large[:]))
		h.headerSize = 16
	}
	if h.size >= 0 && h.size < h.headerSize {
		return boxHeader{}, fmt.Errorf("%w: %s size %d", errShortBox, h.typ, h.size)
	}
	return h, nil
}

// scanMovie walks the top-level boxes of r and parses the moov payload.
// Media data is skipped with Seek, so only the movie header is read.
func scanMovie(r io.ReadSeeker) (movieMeta, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return movieMeta{}, err
	}
	for {
		h, err := readBoxHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return movieMeta{}, errors.New("mp4engine: no moov box")
			}
			return movieMeta{}, err
		}
		if h.typ == "moov" {
			if h.size < 0 {
				payload, err := io.ReadAll(r)
				if err != nil {
					return movieMeta{}, err
				}
				return parseMoov(payload)
			}
			payload := make([]byte, h.size-h.headerSize)
			if _, err := io.ReadFull(r, payload); err != nil {
				return movieMeta{}, err
			}
			return parseMoov(payload)
		}
		if h.size < 0 {
			return movieMeta{}, errors.New("mp4engine: no moov box")
		}
		if _, err := r.Seek(h.size-h.headerSize, io.SeekCurrent); err != nil {
			return movieMeta{}, err
		}
	}
}

// children iterates over the boxes packed in payload.
func children(payload []byte, fn func(typ string, body []byte) error) error {
	for off := 0; off+8 <= len(payload); {
		size := int(binary.BigEndian.Uint32(payload[off:]))
		typ := string(payload[off+4 : off+8])
		hdr := 8
		switch size {
		case 0:
			size = len(payload) - off
		case 1:
			if off+16 > len(payload) {
				return errShortBox
			}
			size = int(binary.BigEndian.Uint64(payload[off+8:]))
			hdr = 16
		}
		if size < hdr || off+size > len(payload) {
			return fmt.Errorf("%w: %s", errShortBox, typ)
		}
		if err := fn(typ, payload[off+hdr:off+size]); err != nil {
			return err
		}
		off += size
	}
	return nil
}

func parseMoov(payload []byte) (movieMeta, error) {
	meta := movieMeta{tracks: make(map[uint32]trackMeta)}
	err := children(payload, func(typ string, body []byte) error {
		switch typ {
		case "mvhd":
			return parseMvhd(body, &meta)
		case "trak":
			id, tm, err := parseTrak(body)
			if err != nil {
				return err
			}
			meta.tracks[id] = tm
		}
		return nil
	})
	return meta, err
}

func parseMvhd(b []byte, meta *movieMeta) error {
	if len(b) < 4 {
		return errShortBox
	}
	if b[0] == 1 {
		if len(b) < 32 {
			return errShortBox
		}
		meta.timescale = binary.BigEndian.Uint32(b[20:])
		meta.duration = binary.BigEndian.Uint64(b[24:])
		return nil
	}
	if len(b) < 20 {
		return errShortBox
	}
	meta.timescale = binary.BigEndian.Uint32(b[12:])
	meta.duration = uint64(binary.BigEndian.Uint32(b[16:]))
	return nil
}

func parseTrak(payload []byte) (uint32, trackMeta, error) {
	var (
		id uint32
		tm trackMeta
	)
	err := children(payload, func(typ string, body []byte) error {
		switch typ {
		case "tkhd":
			var err error
			id, err = parseTkhd(body, &tm)
			return err
		case "mdia":
			return parseMdia(body, &tm)
		}
		return nil
	})
	return id, tm, err
}

// parseTkhd returns the track ID and fills in the display matrix.
func parseTkhd(b []byte, tm *trackMeta) (uint32, error) {
	if len(b) < 4 {
		return 0, errShortBox
	}
	idOff, matrixOff := 12, 40
	if b[0] == 1 {
		idOff, matrixOff = 20, 52
	}
	if len(b) < matrixOff+36 {
		return 0, errShortBox
	}
	for i := range tm.matrix {
		tm.matrix[i] = int32(binary.BigEndian.Uint32(b[matrixOff+4*i:]))
	}
	tm.hasMatrix = true
	return binary.BigEndian.Uint32(b[idOff:]), nil
}

func parseMdia(payload []byte, tm *trackMeta) error {
	var stsd []byte
	err := children(payload, func(typ string, body []byte) error {
		switch typ {
		case "hdlr":
			if len(body) >= 12 {
				tm.handler = string(body[8:12])
			}
		case "minf":
			return children(body, func(typ string, body []byte) error {
				if typ != "stbl" {
					return nil
				}
				return children(body, func(typ string, body []byte) error {
					if typ == "stsd" {
						stsd = body
					}
					return nil
				})
			})
		}
		return nil
	})
	if err != nil || len(stsd) < 16 {
		return err
	}

	// Full box header and entry count precede the first sample entry.
	entry := stsd[8:]
	err = children(entry, func(typ string, body []byte) error {
		switch tm.handler {
		case "vide":
			if len(body) >= 28 {
				tm.width = int(binary.BigEndian.Uint16(body[24:]))
				tm.height = int(binary.BigEndian.Uint16(body[26:]))
			}
		case "soun":
			if len(body) >= 28 {
				tm.channels = int(binary.BigEndian.Uint16(body[16:]))
				tm.sampleRate = int(binary.BigEndian.Uint32(body[24:]) >> 16)
			}
		}
		return errStop
	})
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

// errStop ends a children walk after the first entry.
var errStop = errors.New("stop")
