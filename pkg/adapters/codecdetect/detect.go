// Package codecdetect identifies the video codec of MP4 tracks.
package codecdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Codec is a video codec name as reported in stream metadata.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecVP9     Codec = "vp9"
	CodecUnknown Codec = "unknown"
)

// ErrNoVideoTrack is returned when a file has no video track.
var ErrNoVideoTrack = errors.New("codecdetect: no video track found")

// FromSampleEntry maps an MP4 sample entry type to a codec.
func FromSampleEntry(typ string) Codec {
	switch typ {
	case "avc1", "avc3":
		return CodecH264
	case "hvc1", "hev1":
		return CodecHEVC
	case "av01":
		return CodecAV1
	case "vp09":
		return CodecVP9
	default:
		return CodecUnknown
	}
}

// FromTrack returns the codec of a video track, or CodecUnknown for
// other tracks and unrecognized sample entries.
func FromTrack(trak *mp4.TrakBox) Codec {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
		return CodecUnknown
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return CodecUnknown
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		if codec := FromSampleEntry(child.Type()); codec != CodecUnknown {
			return codec
		}
	}
	return CodecUnknown
}

// DetectFromReader detects the codec of the first video track and rewinds
// the reader.
func DetectFromReader(reader io.ReadSeeker) (Codec, error) {
	f, err := mp4.DecodeFile(reader)
	if err != nil {
		return CodecUnknown, fmt.Errorf("decode mp4: %w", err)
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return CodecUnknown, fmt.Errorf("seek: %w", err)
	}
	return detectFromFile(f)
}

// DetectFromBytes detects the codec from MP4 data.
func DetectFromBytes(data []byte) (Codec, error) {
	return DetectFromReader(bytes.NewReader(data))
}

func detectFromFile(f *mp4.File) (Codec, error) {
	var moov *mp4.MoovBox
	switch {
	case f.Moov != nil:
		moov = f.Moov
	case f.Init != nil:
		moov = f.Init.Moov
	}
	if moov == nil {
		return CodecUnknown, ErrNoVideoTrack
	}

	found := false
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		found = true
		if codec := FromTrack(trak); codec != CodecUnknown {
			return codec, nil
		}
	}
	if !found {
		return CodecUnknown, ErrNoVideoTrack
	}
	return CodecUnknown, nil
}
