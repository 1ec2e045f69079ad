// Package player turns a pull-based decode engine into a timed,
// callback-driven video player.
package player

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/user/vplayer/pkg/adapters/inputstream"
	"github.com/user/vplayer/pkg/adapters/logger"
	"github.com/user/vplayer/pkg/converter"
	"github.com/user/vplayer/pkg/decodectx"
	"github.com/user/vplayer/pkg/metrics"
	"github.com/user/vplayer/pkg/ports"
)

// Player plays one source at a time on a background decode goroutine.
//
// Lifecycle methods may be called from any goroutine except the frame
// callback. At most one decode goroutine is attached at a time, and the
// decode context is only touched by callers holding mu with no worker
// attached.
type Player struct {
	engine     ports.DecodeEngine
	log        ports.Logger
	fs         afero.Fs
	openStream StreamOpener

	mu      sync.Mutex
	running atomic.Bool
	worker  *worker

	dc     *decodectx.Context
	stream ports.InputStream
	conv   *converter.Converter
	info   *ports.VideoInfo
	opts   Options

	// position is the last presented time in milliseconds.
	position atomic.Int64
}

// New creates a player decoding through engine.
func New(engine ports.DecodeEngine, log ports.Logger, options ...Option) *Player {
	if log == nil {
		log = logger.NewNoop()
	}
	p := &Player{
		engine: engine,
		log:    log.WithComponent("player"),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.openStream == nil {
		p.openStream = p.defaultOpener
	}
	return p
}

func (p *Player) defaultOpener(source string, policy ports.ProbePolicy) (ports.InputStream, error) {
	return inputstream.Open(source, inputstream.Options{Fs: p.fs, Policy: policy, Logger: p.log})
}

// Open opens source and starts playback. source is a file path or
// "fd://<n>". It fails with ErrInvalidState when a session is already open.
// On failure nothing of the new session survives.
func (p *Player) Open(source string, opts Options) error {
	if p.engine == nil {
		return fmt.Errorf("no decode engine: %w", ports.ErrInvalidState)
	}
	if source == "" || opts.FrameScale < 0 || math.IsNaN(opts.FrameScale) || opts.StartMills < 0 {
		return ports.ErrInvalidParam
	}

	p.mu.Lock()
	info, dc, err := p.openLocked(source, opts)
	p.mu.Unlock()
	if err != nil {
		p.log.Error("Failed to open %s: %s", source, ports.Diagnostic(err))
		return err
	}

	p.log.Info("Opened %s: %dx%d, %.2f fps, %d ms, codec %s",
		source, info.VideoWidth, info.VideoHeight, info.Fps, info.DurationMills, info.VideoCodec)

	if opts.OnVideoInfo != nil {
		opts.OnVideoInfo(info)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dc != dc {
		// closed from another goroutine during the metadata callback
		return fmt.Errorf("open %s: %w", source, ports.ErrCancelled)
	}
	// Resume during the callback may already have started playback.
	p.spawnLocked()
	return nil
}

func (p *Player) openLocked(source string, opts Options) (ports.VideoInfo, *decodectx.Context, error) {
	if p.dc != nil {
		return ports.VideoInfo{}, nil, fmt.Errorf("open %s: session already open: %w", source, ports.ErrInvalidState)
	}

	stream, err := p.openStream(source, opts.probePolicy())
	if err != nil {
		return ports.VideoInfo{}, nil, fmt.Errorf("open %s: %w", source, err)
	}

	dc, err := decodectx.Open(p.engine, stream, decodectx.Options{
		Mute:            opts.Mute,
		ProbeKeyFrames:  opts.ProbeKeyFrames,
		ProbeDecoderFPS: opts.ProbeDecoderFPS,
		Logger:          p.log.WithComponent("decodectx"),
	})
	if err != nil {
		stream.Close()
		return ports.VideoInfo{}, nil, fmt.Errorf("open %s: %w", source, err)
	}

	conv, err := converter.New(opts.target(), opts.FrameScale)
	if err != nil {
		dc.Close()
		stream.Close()
		return ports.VideoInfo{}, nil, fmt.Errorf("open %s: %w", source, err)
	}
	conv.OnKernelBuild = func(src ports.PixelFormat, srcW, srcH, dstW, dstH int) {
		metrics.KernelBuilds.Inc()
		p.log.Debug("Converter kernel built: %s %dx%d -> %s %dx%d", src, srcW, srcH, conv.Target(), dstW, dstH)
	}

	info := dc.VideoInfo()
	if !converter.Passthrough(info.PixelFormat, opts.FrameScale) {
		info.PixelFormat = conv.Target()
	}

	p.position.Store(0)
	if opts.StartMills > 0 {
		p.applyStart(dc, stream, opts.StartMills)
	}

	p.dc = dc
	p.stream = stream
	p.conv = conv
	p.info = &info
	p.opts = opts
	return info, dc, nil
}

func (p *Player) applyStart(dc *decodectx.Context, stream ports.InputStream, startMills int64) {
	if !stream.Seekable() {
		p.log.Warn("Source is not seekable, ignoring start position %d ms", startMills)
		return
	}
	startMills = min(startMills, dc.SeekDurationUS()/1000)
	if err := dc.SeekTime(startMills * 1000); err != nil {
		p.log.Warn("Failed to seek to start position %d ms: %s", startMills, ports.Diagnostic(err))
		return
	}
	dc.Flush()
	p.position.Store(startMills)
}

// Close stops playback and releases the session. Closing a closed player
// is a no-op.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quiesceLocked()
	if p.dc == nil {
		return
	}
	p.conv = nil
	p.info = nil
	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			p.log.Warn("Failed to close source: %s", err)
		}
		p.stream = nil
	}
	if err := p.dc.Close(); err != nil {
		p.log.Warn("Failed to close decoder: %s", ports.Diagnostic(err))
	}
	p.dc = nil
	p.log.Info("Player closed")
}

// Pause stops the decode goroutine and keeps the session. It is a no-op
// when not running.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiesceLocked() {
		p.log.Info("Paused at %d ms", p.position.Load())
	}
}

// Resume restarts playback from the last known position. It fails with
// ErrInvalidState when nothing is open or playback is already running.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dc == nil {
		return fmt.Errorf("resume: no open session: %w", ports.ErrInvalidState)
	}
	if p.running.Load() {
		return fmt.Errorf("resume: already running: %w", ports.ErrInvalidState)
	}
	// a worker that ended on its own is still attached
	dc := p.dc
	p.quiesceLocked()
	if p.dc != dc {
		return fmt.Errorf("resume: session closed: %w", ports.ErrInvalidState)
	}
	if !p.spawnLocked() {
		return fmt.Errorf("resume: already running: %w", ports.ErrInvalidState)
	}
	p.log.Info("Resumed at %d ms", p.position.Load())
	return nil
}

// IsRunning reports whether the decode goroutine is active.
func (p *Player) IsRunning() bool {
	return p.running.Load()
}

// PlayingMills returns the timestamp of the last presented frame.
func (p *Player) PlayingMills() int64 {
	return p.position.Load()
}

// DurationMills returns the duration of the open source, 0 when closed.
func (p *Player) DurationMills() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dc == nil {
		return 0
	}
	return p.dc.DurationMills()
}

// VideoInfo returns the metadata of the open source.
func (p *Player) VideoInfo() (ports.VideoInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.info == nil {
		return ports.VideoInfo{}, false
	}
	return *p.info, true
}

// Seekable reports whether the open source can reposition.
func (p *Player) Seekable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil && p.stream.Seekable()
}

// SeekToPercent moves playback to percent of the duration. Values outside
// [0, 1] are clamped. On failure the session keeps its previous running
// or paused state.
func (p *Player) SeekToPercent(percent float64) (err error) {
	defer func() { metrics.IncSeek(err == nil) }()

	if math.IsNaN(percent) {
		return ports.ErrInvalidParam
	}
	percent = lo.Clamp(percent, 0, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dc == nil {
		return fmt.Errorf("seek: no open session: %w", ports.ErrInvalidState)
	}
	if p.stream == nil || !p.stream.Seekable() {
		p.log.Error("Seek failed: %s", ports.ErrNotSeekable)
		return ports.ErrNotSeekable
	}

	dc := p.dc
	wasRunning := p.quiesceLocked()
	if p.dc != dc {
		return fmt.Errorf("seek: session closed: %w", ports.ErrInvalidState)
	}

	err = p.seekLocked(percent)
	if err != nil {
		p.log.Error("Seek failed: %s", ports.Diagnostic(err))
	}
	if wasRunning {
		p.spawnLocked()
	}
	return err
}

func (p *Player) seekLocked(percent float64) error {
	p.dc.Flush()

	duration := p.dc.SeekDurationUS()
	if duration <= 0 {
		return ports.ErrDurationUnknown
	}
	target := int64(float64(duration) * percent)
	if err := p.dc.SeekTime(target); err != nil {
		return err
	}
	p.position.Store(target / 1000)
	p.log.Info("Seek to %.1f%% (%d ms)", percent*100, target/1000)
	return nil
}

// quiesceLocked stops and joins attached workers until none is left. p.mu
// is released while joining and held again on return, so a worker
// attached meanwhile by another caller is stopped as well. It reports
// whether any worker was attached.
func (p *Player) quiesceLocked() bool {
	stopped := false
	for p.worker != nil {
		w := p.worker
		p.worker = nil
		p.running.Store(false)
		w.requestStop()

		p.mu.Unlock()
		w.join()
		p.mu.Lock()
		stopped = true
	}
	return stopped
}

// spawnLocked starts a decode goroutine unless one is already attached.
// p.mu must be held.
func (p *Player) spawnLocked() bool {
	if p.worker != nil || p.dc == nil {
		return false
	}
	w := newWorker(p, p.dc, p.conv, p.opts)
	p.worker = w
	p.running.Store(true)
	go w.run()
	return true
}

// workerExited clears the running flag when w stopped on its own.
func (p *Player) workerExited(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.worker == w {
		p.running.Store(false)
	}
}

var errStopped = errors.New("player: stopped")
