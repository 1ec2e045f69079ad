// Package metrics exposes playback counters to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesPresented counts frames handed to the frame callback.
	FramesPresented = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vplayer_frames_presented_total",
		Help: "Total number of frames delivered to the frame callback",
	})

	// FramesLate counts frames whose deadline had already passed when they
	// were ready. They are still presented.
	FramesLate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vplayer_frames_late_total",
		Help: "Total number of frames presented after their deadline",
	})

	// FrameLateness tracks how far behind the clock late frames were.
	FrameLateness = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vplayer_frame_lateness_seconds",
		Help:    "Delay between a late frame's deadline and its presentation",
		Buckets: []float64{0.001, 0.005, 0.01, 0.033, 0.066, 0.1, 0.25, 0.5, 1},
	})

	// LoopRestarts counts end-of-stream rewinds.
	LoopRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vplayer_loop_restarts_total",
		Help: "Total number of end-of-stream rewinds",
	})

	// ReadRetries counts transient packet read failures that were retried.
	ReadRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vplayer_read_retries_total",
		Help: "Total number of transient read failures retried",
	})

	// PacketErrors counts packets the decoder rejected, by stage.
	PacketErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vplayer_packet_errors_total",
		Help: "Total number of packets skipped after a decode failure",
	}, []string{"stage"})

	// Seeks counts SeekToPercent calls by result.
	Seeks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vplayer_seeks_total",
		Help: "Total number of seek requests by result",
	}, []string{"result"})

	// KernelBuilds counts converter kernel (re)builds.
	KernelBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vplayer_converter_kernel_builds_total",
		Help: "Total number of frame converter kernel builds",
	})
)

// ObserveLate records a frame presented d after its deadline.
func ObserveLate(d time.Duration) {
	FramesLate.Inc()
	FrameLateness.Observe(d.Seconds())
}

// IncPacketError records a skipped packet. stage is "send" or "receive".
func IncPacketError(stage string) {
	PacketErrors.WithLabelValues(stage).Inc()
}

// IncSeek records a seek outcome.
func IncSeek(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	Seeks.WithLabelValues(result).Inc()
}
