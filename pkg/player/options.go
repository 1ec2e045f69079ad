package player

import (
	"time"

	"github.com/spf13/afero"
	"github.com/user/vplayer/pkg/ports"
)

// DefaultReadRetryBackoff is the pause after a transient read failure.
const DefaultReadRetryBackoff = 5 * time.Millisecond

// Options configures one Open call.
type Options struct {
	// Mute skips audio stream discovery.
	Mute bool
	// StartMills seeks to this position before the first frame.
	StartMills int64
	// FrameScale scales presented frames. 0 and 1 keep the source size.
	FrameScale float64
	// Format is the presentation format, RGBA or BGRA. Defaults to RGBA.
	Format ports.PixelFormat

	// OnVideoInfo is called once per successful Open, before any frame.
	OnVideoInfo func(info ports.VideoInfo)
	// OnFrame is called on the decode goroutine for every presented frame.
	// The frame is only valid during the call. It must not call lifecycle
	// methods of the player.
	OnFrame func(frame *VideoFrame)

	// ProbeKeyFrames measures the key frame interval at open.
	ProbeKeyFrames bool
	// ProbeDecoderFPS measures decoder throughput at open.
	ProbeDecoderFPS bool
	// ReadRetryBackoff overrides DefaultReadRetryBackoff.
	ReadRetryBackoff time.Duration
	// ZeroLengthUnseekable marks sources whose size probes to zero as not
	// seekable.
	ZeroLengthUnseekable bool
}

func (o Options) probePolicy() ports.ProbePolicy {
	return ports.ProbePolicy{ZeroLengthSeekable: !o.ZeroLengthUnseekable}
}

func (o Options) backoff() time.Duration {
	if o.ReadRetryBackoff > 0 {
		return o.ReadRetryBackoff
	}
	return DefaultReadRetryBackoff
}

func (o Options) target() ports.PixelFormat {
	if o.Format == ports.PixelFormatUnknown {
		return ports.PixelFormatRGBA
	}
	return o.Format
}

// StreamOpener resolves a source string into an input stream.
type StreamOpener func(source string, policy ports.ProbePolicy) (ports.InputStream, error)

// Option configures a Player.
type Option func(*Player)

// WithStreamOpener replaces the default source resolution.
func WithStreamOpener(open StreamOpener) Option {
	return func(p *Player) {
		p.openStream = open
	}
}

// WithFileSystem resolves file paths on fs instead of the OS filesystem.
func WithFileSystem(fs afero.Fs) Option {
	return func(p *Player) {
		p.fs = fs
	}
}
