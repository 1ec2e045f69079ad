package ports

// VideoInfo is the metadata snapshot handed to callers once per open.
type VideoInfo struct {
	DurationMills   int64
	TotalFrames     int64
	VideoWidth      int
	VideoHeight     int
	AudioChannels   int
	AudioSampleRate int
	Fps             float64
	VideoCodec      string
	Rotation        int
	DecoderFPS      float64
	HasAudio        bool
	PixelFormat     PixelFormat
}

// FrameInfo describes a frame delivered to the frame callback.
type FrameInfo struct {
	Width       int
	Height      int
	SizeInBytes int
	TimeMills   int64
	Format      PixelFormat
}
