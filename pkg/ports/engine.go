package ports

// StreamInfo is the metadata a decode session reports after open.
type StreamInfo struct {
	// VideoStreamIndex is the index of the selected video stream, -1 if none.
	VideoStreamIndex int
	// AudioStreamIndex is the index of the first audio stream, -1 if none.
	AudioStreamIndex int

	// TimeBase converts video stream ticks to seconds.
	TimeBase Rational
	// StreamDuration is the video stream duration in TimeBase units, 0 if unknown.
	StreamDuration int64
	// ContainerDuration is the container level duration in microseconds, 0 if unknown.
	ContainerDuration int64
	// AvgFrameRate is the average video frame rate.
	AvgFrameRate Rational
	// FrameCount is the number of video frames the container declares.
	FrameCount int64

	CodedWidth  int
	CodedHeight int
	PixelFormat PixelFormat
	CodecName   string

	// RotateTag is the raw "rotate" metadata value, empty when absent.
	RotateTag string
	// DisplayMatrix is the 3x3 display transformation in 16.16/2.30 fixed
	// point, nil when absent.
	DisplayMatrix *[9]int32

	AudioChannels   int
	AudioSampleRate int
}

// EngineOptions configures a decode session.
type EngineOptions struct {
	// DisableAudio skips audio stream discovery.
	DisableAudio bool
}

// DecodeEngine opens decode sessions over input streams.
type DecodeEngine interface {
	// Open discovers streams on the given source and prepares the video
	// decoder. The stream stays owned by the caller.
	Open(stream InputStream, opts EngineOptions) (DecodeSession, error)
}

// DecodeSession is the pull-based demux and decode interface of one opened
// source. It is not safe for concurrent use.
type DecodeSession interface {
	// Info returns the stream metadata discovered at open.
	Info() StreamInfo

	// ReadPacket returns the next packet in decode order. It returns io.EOF
	// at the end of the source; other errors are transient.
	ReadPacket() (*Packet, error)

	// SendPacket feeds a video packet to the decoder. A nil packet signals
	// end of input so buffered frames can be drained.
	SendPacket(pkt *Packet) error

	// ReceiveFrame returns the next decoded frame, ErrAgain when more input
	// is needed, or io.EOF once a drain has completed.
	ReceiveFrame() (*RawFrame, error)

	// SeekStream positions the demuxer at the last key frame at or before
	// ts, expressed in the stream's timebase.
	SeekStream(streamIndex int, ts int64) error

	// SeekTime is SeekStream with a timestamp in microseconds.
	SeekTime(us int64) error

	// Flush drops every frame buffered inside the decoder.
	Flush()

	// Close releases the decoder before the demuxer.
	Close() error
}
