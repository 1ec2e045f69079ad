package mp4engine

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vplayer/pkg/adapters/inputstream"
	"github.com/user/vplayer/pkg/adapters/mp4fixture"
	"github.com/user/vplayer/pkg/decodectx"
	"github.com/user/vplayer/pkg/mocks"
	"github.com/user/vplayer/pkg/ports"
)

var testMovie = mp4fixture.Movie{Width: 64, Height: 48, FPS: 30, Frames: 90, GOP: 30}

func buildMovie(t *testing.T, m mp4fixture.Movie) []byte {
	t.Helper()
	data, err := mp4fixture.Build(m)
	require.NoError(t, err)
	return data
}

func openData(t *testing.T, data []byte, seekable bool) (*session, *mocks.CodecDecoder) {
	t.Helper()
	var r io.Reader = bytes.NewReader(data)
	if !seekable {
		r = struct{ io.Reader }{r}
	}
	stream, err := inputstream.NewReaderStream(r, ports.DefaultProbePolicy())
	require.NoError(t, err)
	require.Equal(t, seekable, stream.Seekable())

	dec := &mocks.CodecDecoder{}
	s, err := New(mocks.CodecDecoderFactory(dec), nil).Open(stream, ports.EngineOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.(*session), dec
}

func TestOpen_StreamInfo(t *testing.T) {
	s, dec := openData(t, buildMovie(t, testMovie), true)
	info := s.Info()

	assert.Equal(t, 0, info.VideoStreamIndex)
	assert.Equal(t, -1, info.AudioStreamIndex)
	assert.Equal(t, ports.Rational{Num: 1, Den: 30000}, info.TimeBase)
	assert.Equal(t, int64(90000), info.StreamDuration)
	assert.Equal(t, int64(90), info.FrameCount)
	assert.InDelta(t, 30.0, info.AvgFrameRate.Float(), 1e-9)
	assert.Equal(t, 64, info.CodedWidth)
	assert.Equal(t, 48, info.CodedHeight)
	assert.Equal(t, "av1", info.CodecName)
	assert.Equal(t, ports.PixelFormatYUV420P, info.PixelFormat)
	require.NotNil(t, info.DisplayMatrix)
	assert.InDelta(t, 0.0, decodectx.DisplayRotation(*info.DisplayMatrix), 1e-9)

	assert.Equal(t, "av1", dec.Config.Codec)
	assert.Equal(t, 64, dec.Config.Width)
	assert.Equal(t, 0, dec.Config.LengthSize)
}

func TestOpen_NonSeekableSourceIsSpooled(t *testing.T) {
	s, _ := openData(t, buildMovie(t, testMovie), false)
	assert.Equal(t, int64(90), s.Info().FrameCount)

	pkt, err := s.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, mp4fixture.Payload(0), pkt.Data)
}

func TestOpen_Errors(t *testing.T) {
	_, err := New(nil, nil).Open(nil, ports.EngineOptions{})
	assert.ErrorIs(t, err, ports.ErrInvalidParam)

	stream, err := inputstream.NewReaderStream(bytes.NewReader([]byte("not an mp4 file")), ports.DefaultProbePolicy())
	require.NoError(t, err)
	_, err = New(nil, nil).Open(stream, ports.EngineOptions{})
	var ee *ports.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "open", ee.Op)

	stream, err = inputstream.NewReaderStream(bytes.NewReader(buildMovie(t, testMovie)), ports.DefaultProbePolicy())
	require.NoError(t, err)
	_, err = New(nil, nil).Open(stream, ports.EngineOptions{})
	assert.ErrorIs(t, err, ports.ErrUnsupported)

	dec := &mocks.CodecDecoder{OpenErr: errors.New("no hardware")}
	stream, err = inputstream.NewReaderStream(bytes.NewReader(buildMovie(t, testMovie)), ports.DefaultProbePolicy())
	require.NoError(t, err)
	_, err = New(mocks.CodecDecoderFactory(dec), nil).Open(stream, ports.EngineOptions{})
	assert.Error(t, err)
	assert.True(t, dec.Closed)
}

func TestReadPacket_DecodeOrder(t *testing.T) {
	s, _ := openData(t, buildMovie(t, testMovie), true)

	var keys []int
	for i := 0; ; i++ {
		pkt, err := s.ReadPacket()
		if errors.Is(err, io.EOF) {
			assert.Equal(t, 90, i)
			break
		}
		require.NoError(t, err)
		assert.Equal(t, int64(i*1000), pkt.DTS)
		assert.Equal(t, pkt.DTS, pkt.PTS)
		assert.Equal(t, int64(1000), pkt.Duration)
		assert.Equal(t, mp4fixture.Payload(i), pkt.Data)
		if pkt.KeyFrame {
			keys = append(keys, i)
		}
	}
	assert.Equal(t, []int{0, 30, 60}, keys)

	_, err := s.ReadPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSeekStream_LandsOnKeyFrame(t *testing.T) {
	s, _ := openData(t, buildMovie(t, testMovie), true)

	tests := []struct {
		ts   int64
		want int64
	}{
		{0, 0},
		{29000, 0},
		{30000, 30000},
		{59999, 30000},
		{200000, 60000},
		{-5, 0},
	}
	for _, tt := range tests {
		require.NoError(t, s.SeekStream(0, tt.ts))
		pkt, err := s.ReadPacket()
		require.NoError(t, err)
		assert.Equal(t, tt.want, pkt.DTS, "seek to %d", tt.ts)
		assert.True(t, pkt.KeyFrame)
	}

	require.NoError(t, s.SeekTime(1500000))
	pkt, err := s.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(30000), pkt.DTS)

	assert.ErrorIs(t, s.SeekStream(3, 0), ports.ErrInvalidParam)
}

func TestDecodeRoundTrip(t *testing.T) {
	s, dec := openData(t, buildMovie(t, testMovie), true)

	pkt, err := s.ReadPacket()
	require.NoError(t, err)
	require.NoError(t, s.SendPacket(pkt))
	f, err := s.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, 64, f.Width)
	assert.Equal(t, int64(0), f.PTS)

	_, err = s.ReceiveFrame()
	assert.ErrorIs(t, err, ports.ErrAgain)

	require.NoError(t, s.SendPacket(nil))
	_, err = s.ReceiveFrame()
	assert.ErrorIs(t, err, io.EOF)

	s.Flush()
	assert.Equal(t, 1, dec.FlushCalls)

	require.NoError(t, s.Close())
	assert.True(t, dec.Closed)
	assert.ErrorIs(t, s.SendPacket(pkt), ports.ErrInvalidState)
}

func TestSendPacket_WrapsDecoderErrors(t *testing.T) {
	s, dec := openData(t, buildMovie(t, testMovie), true)
	dec.SendErr = errors.New("corrupt slice")

	pkt, err := s.ReadPacket()
	require.NoError(t, err)
	err = s.SendPacket(pkt)
	var ee *ports.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "decode", ee.Op)
	assert.Equal(t, "corrupt slice", ports.Diagnostic(err))
}

func TestDisplayMatrixRotation(t *testing.T) {
	data := buildMovie(t, testMovie)
	require.NoError(t, mp4fixture.SetDisplayMatrix(data, decodectx.RotationMatrix(90)))

	s, _ := openData(t, data, true)
	info := s.Info()
	require.NotNil(t, info.DisplayMatrix)
	assert.InDelta(t, -90.0, decodectx.DisplayRotation(*info.DisplayMatrix), 0.01)
}

func TestDecodeContext_OverMP4(t *testing.T) {
	data := buildMovie(t, testMovie)
	require.NoError(t, mp4fixture.SetDisplayMatrix(data, decodectx.RotationMatrix(90)))
	stream, err := inputstream.NewReaderStream(bytes.NewReader(data), ports.DefaultProbePolicy())
	require.NoError(t, err)

	dec := &mocks.CodecDecoder{}
	ctx, err := decodectx.Open(New(mocks.CodecDecoderFactory(dec), nil), stream, decodectx.Options{Mute: true, ProbeKeyFrames: true})
	require.NoError(t, err)
	defer ctx.Close()

	assert.Equal(t, int64(3000), ctx.DurationMills())
	assert.Equal(t, int64(30000), ctx.KeyFrameGap())
	assert.Equal(t, -90, ctx.Rotation())
	assert.Equal(t, 90, ctx.OutputRotation())
	w, h := ctx.Size()
	assert.Equal(t, 48, w)
	assert.Equal(t, 64, h)
}
