// Package mp4fixture builds small fragmented MP4 files for tests.
package mp4fixture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"
)

// Movie describes a single-track AV1 movie with opaque sample payloads.
type Movie struct {
	Width  int
	Height int
	FPS    int
	Frames int
	// GOP is the key frame interval in frames; 0 marks every frame as a
	// key frame.
	GOP int
}

// Payload returns the sample data written for frame i. The first byte
// pair carries the frame number so decoders under test can recover it.
func Payload(i int) []byte {
	return []byte{byte(i >> 8), byte(i), 0xA5, 0x5A}
}

// Timescale returns the track timescale used for m.
func (m Movie) Timescale() uint32 {
	return uint32(m.FPS * 1000)
}

// Build encodes m as ftyp + moov + one moof/mdat pair.
func Build(m Movie) ([]byte, error) {
	if m.Width <= 0 || m.Height <= 0 || m.FPS <= 0 || m.Frames <= 0 {
		return nil, errors.New("mp4fixture: invalid movie")
	}
	timescale := m.Timescale()
	trackID := uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")
	trak := init.Moov.Trak

	av1C := &mp4.Av1CBox{
		CodecConfRec: av1.CodecConfRec{
			Version:            1,
			SeqLevelIdx0:       8,
			ChromaSubsamplingX: 1,
			ChromaSubsamplingY: 1,
		},
	}
	av01 := mp4.CreateVisualSampleEntryBox("av01", uint16(m.Width), uint16(m.Height), av1C)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(av01)
	trak.Tkhd.Width = mp4.Fixed32(m.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(m.Height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}
	dur := uint32(1000)
	for i := 0; i < m.Frames; i++ {
		flags := mp4.NonSyncSampleFlags
		if m.GOP == 0 || i%m.GOP == 0 {
			flags = mp4.SyncSampleFlags
		}
		data := Payload(i)
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(data)),
				Dur:   dur,
			},
			DecodeTime: uint64(i) * uint64(dur),
			Data:       data,
		})
	}

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "av01", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}
	return buf.Bytes(), nil
}

// SetDisplayMatrix overwrites the matrix of the first tkhd box in data.
func SetDisplayMatrix(data []byte, matrix [9]int32) error {
	pos := bytes.Index(data, []byte("tkhd"))
	if pos < 4 {
		return errors.New("mp4fixture: no tkhd box")
	}
	body := pos + 4
	off := body + 40
	if data[body] == 1 {
		off = body + 52
	}
	if off+36 > len(data) {
		return errors.New("mp4fixture: truncated tkhd box")
	}
	for i, v := range matrix {
		binary.BigEndian.PutUint32(data[off+4*i:], uint32(v))
	}
	return nil
}
