package player

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/user/vplayer/pkg/converter"
	"github.com/user/vplayer/pkg/decodectx"
	"github.com/user/vplayer/pkg/metrics"
	"github.com/user/vplayer/pkg/ports"
	"golang.org/x/time/rate"
)

// lateTolerance is how far past its deadline a frame may be presented
// before it counts as late.
const lateTolerance = 5 * time.Millisecond

// worker is one run of the decode-and-pace loop.
type worker struct {
	p    *Player
	dc   *decodectx.Context
	conv *converter.Converter
	opts Options

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	clock        presentationClock
	retryWarning rate.Sometimes
	loopFrames   int
}

func newWorker(p *Player, dc *decodectx.Context, conv *converter.Converter, opts Options) *worker {
	return &worker{
		p:            p,
		dc:           dc,
		conv:         conv,
		opts:         opts,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		retryWarning: rate.Sometimes{First: 1, Interval: time.Second},
	}
}

func (w *worker) requestStop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *worker) join() {
	<-w.done
}

// running reports whether this worker has not been asked to stop.
func (w *worker) running() bool {
	select {
	case <-w.stop:
		return false
	default:
		return true
	}
}

// sleep waits for d or until a stop is requested. It reports whether the
// full duration elapsed.
func (w *worker) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-w.stop:
		return false
	}
}

func (w *worker) run() {
	defer close(w.done)

	log := w.p.log
	if w.dc == nil {
		log.Error("Invalid decode context, stopping playback")
		w.p.workerExited(w)
		return
	}

	video := w.dc.VideoStreamIndex()
	for w.running() {
		pkt, err := w.dc.ReadPacket()
		if errors.Is(err, io.EOF) {
			if !w.restart() {
				return
			}
			continue
		}
		if err != nil {
			metrics.ReadRetries.Inc()
			w.retryWarning.Do(func() {
				log.Warn("Read failed, retrying: %s", ports.Diagnostic(err))
			})
			if !w.sleep(w.opts.backoff()) {
				return
			}
			continue
		}

		if pkt.StreamIndex != video {
			continue
		}
		if err := w.dc.SendPacket(pkt); err != nil {
			metrics.IncPacketError("send")
			log.Warn("Decoder rejected packet at %d: %s", pkt.PTS, ports.Diagnostic(err))
			continue
		}
		if err := w.receive(); err != nil {
			return
		}
	}
}

// receive presents every frame the decoder has ready. It returns
// errStopped when a stop interrupted pacing.
func (w *worker) receive() error {
	for w.running() {
		frame, err := w.dc.ReceiveFrame()
		if errors.Is(err, ports.ErrAgain) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			metrics.IncPacketError("receive")
			w.p.log.Warn("Failed to receive frame: %s", ports.Diagnostic(err))
			return nil
		}
		if !w.present(frame) {
			return errStopped
		}
	}
	return errStopped
}

// restart drains the decoder at end of stream, rewinds and re-anchors the
// clock so the next pass is paced from its first frame.
func (w *worker) restart() bool {
	if err := w.dc.SendPacket(nil); err == nil {
		if err := w.receive(); err != nil {
			return false
		}
	}
	if !w.running() {
		return false
	}

	idle := w.loopFrames == 0
	if err := w.dc.SeekToStart(); err != nil {
		w.p.log.Error("Failed to rewind: %s", ports.Diagnostic(err))
		idle = true
	}
	w.p.position.Store(0)
	w.clock.reset()
	w.loopFrames = 0
	metrics.LoopRestarts.Inc()
	w.p.log.Debug("End of stream, restarting")

	if idle {
		return w.sleep(w.opts.backoff())
	}
	return true
}

// present waits for the frame deadline, publishes the position and hands
// the frame to the callback. It returns false when stopped while waiting.
func (w *worker) present(frame *ports.RawFrame) bool {
	ts := decodectx.FrameTimestamp(frame)
	ptsUS := w.dc.ToMicros(ts)

	wait := w.clock.until(ptsUS, w.p.position.Load(), time.Now())
	if wait > 0 {
		if !w.sleep(wait) {
			return false
		}
	} else if -wait > lateTolerance {
		metrics.ObserveLate(-wait)
	}

	out := frame
	if !converter.Passthrough(frame.Format, w.opts.FrameScale) {
		converted, err := w.conv.Convert(frame)
		if err != nil {
			metrics.IncPacketError("convert")
			w.p.log.Warn("Failed to convert frame: %s", err)
			return true
		}
		out = converted
	}

	w.p.position.Store(ptsUS / 1000)
	w.loopFrames++
	metrics.FramesPresented.Inc()

	if w.opts.OnFrame != nil {
		w.opts.OnFrame(newVideoFrame(out, w.dc.OutputRotation(), ptsUS/1000))
	}
	return true
}

// presentationClock maps stream time to wall-clock deadlines.
type presentationClock struct {
	base     time.Time
	anchored bool
}

func (c *presentationClock) reset() {
	c.anchored = false
}

// until returns how long to wait before presenting a frame at ptsUS. The
// first call after a reset anchors the baseline so that the known
// position positionMs maps to now.
func (c *presentationClock) until(ptsUS, positionMs int64, now time.Time) time.Duration {
	if !c.anchored {
		c.base = now
		if positionMs > 0 {
			c.base = now.Add(-time.Duration(positionMs) * time.Millisecond)
		}
		c.anchored = true
	}
	elapsed := now.Sub(c.base)
	return time.Duration(ptsUS)*time.Microsecond - elapsed
}
