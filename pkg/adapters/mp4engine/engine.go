// Package mp4engine implements a decode engine for ISO-BMFF (MP4) sources.
// Demuxing is done with mp4ff; decoding is delegated to a codec decoder
// chosen by the track's sample entry.
package mp4engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/vplayer/pkg/adapters/codecdetect"
	"github.com/user/vplayer/pkg/ports"
)

// avccLengthSize is the NAL length prefix size written by every muxer we
// accept.
const avccLengthSize = 4

// Engine opens MP4 sources.
type Engine struct {
	// Decoders creates the codec decoder for the video track.
	Decoders ports.CodecDecoderFactory

	log ports.Logger
}

// New creates an engine backed by the given decoder factory.
func New(decoders ports.CodecDecoderFactory, log ports.Logger) *Engine {
	e := &Engine{Decoders: decoders, log: log}
	if log != nil {
		e.log = log.WithComponent("mp4")
	}
	return e
}

// Open parses the movie structure of stream and opens a decoder for its
// first video track. Non-seekable sources are read into memory first.
func (e *Engine) Open(stream ports.InputStream, opts ports.EngineOptions) (ports.DecodeSession, error) {
	if stream == nil {
		return nil, ports.ErrInvalidParam
	}

	var src io.ReadSeeker = stream
	if stream.Seekable() {
		if _, err := stream.Seek(0, io.SeekStart); err != nil {
			return nil, ports.NewEngineError("open", "cannot rewind input", err)
		}
	} else {
		data, err := io.ReadAll(stream)
		if err != nil {
			return nil, ports.NewEngineError("open", "cannot read input", err)
		}
		src = bytes.NewReader(data)
	}

	f, err := mp4.DecodeFile(src)
	if err != nil {
		return nil, ports.NewEngineError("open", "invalid data found when processing input", err)
	}
	meta, err := scanMovie(src)
	if err != nil {
		return nil, ports.NewEngineError("open", "invalid movie header", err)
	}

	s, err := e.newSession(f, meta, src, opts)
	if err != nil {
		return nil, err
	}
	if e.log != nil {
		e.log.Debug("Indexed %d samples (%d key frames), codec %s", len(s.index.samples), s.index.syncCount(), s.info.CodecName)
	}
	return s, nil
}

func movieBox(f *mp4.File) *mp4.MoovBox {
	if f.Moov != nil {
		return f.Moov
	}
	if f.Init != nil {
		return f.Init.Moov
	}
	return nil
}

func handlerType(trak *mp4.TrakBox) string {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
		return ""
	}
	return trak.Mdia.Hdlr.HandlerType
}

func (e *Engine) newSession(f *mp4.File, meta movieMeta, src io.ReadSeeker, opts ports.EngineOptions) (*session, error) {
	moov := movieBox(f)
	if moov == nil {
		return nil, ports.NewEngineError("open", "no moov box found", ports.ErrUnsupported)
	}

	s := &session{
		src: src,
		info: ports.StreamInfo{
			VideoStreamIndex:  -1,
			AudioStreamIndex:  -1,
			ContainerDuration: meta.durationMicros(),
		},
	}

	var video *mp4.TrakBox
	for i, trak := range moov.Traks {
		switch handlerType(trak) {
		case "vide":
			if video == nil {
				video = trak
				s.info.VideoStreamIndex = i
			}
		case "soun":
			if !opts.DisableAudio && s.info.AudioStreamIndex < 0 {
				s.info.AudioStreamIndex = i
				tm := meta.tracks[trak.Tkhd.TrackID]
				s.info.AudioChannels = tm.channels
				s.info.AudioSampleRate = tm.sampleRate
			}
		}
	}
	if video == nil {
		return s.withoutVideo()
	}

	trackID := video.Tkhd.TrackID
	var timescale uint32 = 1000
	if video.Mdia != nil && video.Mdia.Mdhd != nil && video.Mdia.Mdhd.Timescale != 0 {
		timescale = video.Mdia.Mdhd.Timescale
	}

	var err error
	if f.IsFragmented() {
		s.index, err = buildFragmentedIndex(f, trackID, findTrex(moov, trackID))
	} else {
		s.index, err = buildProgressiveIndex(video)
	}
	if err != nil {
		return nil, ports.NewEngineError("open", "cannot index samples", err)
	}

	tm := meta.tracks[trackID]
	s.info.TimeBase = ports.Rational{Num: 1, Den: int64(timescale)}
	s.info.StreamDuration = s.index.duration()
	s.info.FrameCount = int64(len(s.index.samples))
	s.info.AvgFrameRate = averageRate(s.info.FrameCount, s.info.StreamDuration, timescale)
	s.info.CodedWidth, s.info.CodedHeight = tm.width, tm.height
	if s.info.CodedWidth == 0 || s.info.CodedHeight == 0 {
		s.info.CodedWidth = int(video.Tkhd.Width >> 16)
		s.info.CodedHeight = int(video.Tkhd.Height >> 16)
	}
	if tm.hasMatrix {
		m := tm.matrix
		s.info.DisplayMatrix = &m
	}

	codec := codecdetect.FromTrack(video)
	s.info.CodecName = string(codec)
	s.info.PixelFormat = ports.PixelFormatYUV420P
	if codec == codecdetect.CodecUnknown {
		return nil, ports.NewEngineError("open", "unsupported video codec", ports.ErrUnsupported)
	}
	if e.Decoders == nil {
		return nil, ports.NewEngineError("open", "no decoder for "+s.info.CodecName, ports.ErrUnsupported)
	}

	dec, err := e.Decoders(s.info.CodecName)
	if err != nil {
		return nil, ports.NewEngineError("open", "no decoder for "+s.info.CodecName, err)
	}
	cfg := ports.CodecConfig{
		Codec:         s.info.CodecName,
		Width:         s.info.CodedWidth,
		Height:        s.info.CodedHeight,
		ParameterSets: parameterSets(video),
	}
	if codec == codecdetect.CodecH264 {
		cfg.LengthSize = avccLengthSize
	}
	if err := dec.Open(cfg); err != nil {
		_ = dec.Close()
		return nil, ports.NewEngineError("open", "cannot open decoder", err)
	}
	s.dec = dec
	return s, nil
}

// withoutVideo returns a session that only reports stream discovery, so
// the caller can tell a missing video stream apart from a broken file.
func (s *session) withoutVideo() (*session, error) {
	s.index = &sampleIndex{}
	return s, nil
}

func findTrex(moov *mp4.MoovBox, trackID uint32) *mp4.TrexBox {
	if moov.Mvex == nil {
		return nil
	}
	for _, t := range moov.Mvex.Trexs {
		if t.TrackID == trackID {
			return t
		}
	}
	return nil
}

// parameterSets returns the out-of-band SPS and PPS units of an AVC track.
func parameterSets(trak *mp4.TrakBox) [][]byte {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return nil
	}
	var sets [][]byte
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		entry, ok := child.(*mp4.VisualSampleEntryBox)
		if !ok || entry.AvcC == nil {
			continue
		}
		sets = append(sets, entry.AvcC.SPSnalus...)
		sets = append(sets, entry.AvcC.PPSnalus...)
		break
	}
	return sets
}

func averageRate(frames, duration int64, timescale uint32) ports.Rational {
	if frames <= 0 || duration <= 0 {
		return ports.Rational{}
	}
	num, den := frames*int64(timescale), duration
	g := gcd(num, den)
	return ports.Rational{Num: num / g, Den: den / g}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// session is a ports.DecodeSession over one indexed MP4 video track.
type session struct {
	src   io.ReadSeeker
	info  ports.StreamInfo
	index *sampleIndex
	next  int
	dec   ports.CodecDecoder
}

func (s *session) Info() ports.StreamInfo {
	return s.info
}

// ReadPacket returns the next video sample. A failed read leaves the read
// position unchanged so the caller can retry.
func (s *session) ReadPacket() (*ports.Packet, error) {
	if s.next >= len(s.index.samples) {
		return nil, io.EOF
	}
	smp := s.index.samples[s.next]
	data := smp.data
	if data == nil {
		var err error
		if data, err = s.readSample(smp); err != nil {
			return nil, ports.NewEngineError("read", fmt.Sprintf("sample %d", s.next), errors.Join(ports.ErrIO, err))
		}
	}
	s.next++
	return &ports.Packet{
		StreamIndex: s.info.VideoStreamIndex,
		PTS:         smp.pts(),
		DTS:         smp.dts,
		Duration:    int64(smp.dur),
		KeyFrame:    smp.sync,
		Data:        data,
	}, nil
}

func (s *session) readSample(smp sample) ([]byte, error) {
	if _, err := s.src.Seek(smp.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data := make([]byte, smp.size)
	if _, err := io.ReadFull(s.src, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *session) SendPacket(pkt *ports.Packet) error {
	if s.dec == nil {
		return ports.ErrInvalidState
	}
	if pkt != nil && pkt.StreamIndex != s.info.VideoStreamIndex {
		return nil
	}
	if err := s.dec.SendPacket(pkt); err != nil {
		if errors.Is(err, ports.ErrAgain) {
			return err
		}
		return ports.NewEngineError("decode", ports.Diagnostic(err), err)
	}
	return nil
}

func (s *session) ReceiveFrame() (*ports.RawFrame, error) {
	if s.dec == nil {
		return nil, ports.ErrInvalidState
	}
	return s.dec.ReceiveFrame()
}

func (s *session) SeekStream(streamIndex int, ts int64) error {
	if streamIndex >= 0 && streamIndex != s.info.VideoStreamIndex {
		return ports.ErrInvalidParam
	}
	if len(s.index.samples) == 0 {
		return ports.NewEngineError("seek", "no samples", ports.ErrInvalidState)
	}
	s.next = s.index.seekTarget(ts)
	return nil
}

func (s *session) SeekTime(us int64) error {
	return s.SeekStream(s.info.VideoStreamIndex, ports.Rescale(us, ports.MicrosecondTimeBase, s.info.TimeBase))
}

func (s *session) Flush() {
	if s.dec != nil {
		s.dec.Flush()
	}
}

// Close releases the codec decoder. The source stays owned by the caller.
func (s *session) Close() error {
	if s.dec == nil {
		return nil
	}
	err := s.dec.Close()
	s.dec = nil
	return err
}

var _ ports.DecodeEngine = (*Engine)(nil)
