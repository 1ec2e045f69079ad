package ports

// CodecConfig carries what a codec decoder needs before the first packet.
type CodecConfig struct {
	Codec  string
	Width  int
	Height int

	// ParameterSets holds out-of-band configuration units (SPS/PPS for
	// H.264, configuration OBUs for AV1).
	ParameterSets [][]byte

	// LengthSize is the size of the NAL length prefix in samples, 0 when
	// the payload is not length-prefixed.
	LengthSize int
}

// CodecDecoder turns packets of one codec into raw frames.
type CodecDecoder interface {
	Open(cfg CodecConfig) error

	// SendPacket feeds one packet; nil signals end of input.
	SendPacket(pkt *Packet) error

	// ReceiveFrame returns ErrAgain when more input is needed and io.EOF
	// after a drain has completed.
	ReceiveFrame() (*RawFrame, error)

	// Flush drops buffered frames and resets the decoder for new input.
	Flush()

	Close() error
}

// CodecDecoderFactory creates a decoder for the named codec.
type CodecDecoderFactory func(codec string) (CodecDecoder, error)
