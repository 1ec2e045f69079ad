// Package main provides the CLI entry point for vplay.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/user/vplayer/pkg/adapters/filesink"
	"github.com/user/vplayer/pkg/adapters/logger"
	"github.com/user/vplayer/pkg/adapters/mp4engine"
	"github.com/user/vplayer/pkg/adapters/nullsink"
	"github.com/user/vplayer/pkg/adapters/smartdecoder"
	"github.com/user/vplayer/pkg/adapters/testsrc"
	"github.com/user/vplayer/pkg/config"
	"github.com/user/vplayer/pkg/player"
	"github.com/user/vplayer/pkg/ports"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// exits with the code of a cli.ExitCoder
		cli.HandleExitCoder(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, l10n.F("vplay version %s", player.Version))
	}

	return &cli.App{
		Name:    "vplay",
		Usage:   l10n.T("Play video files through the vplayer engine"),
		Version: player.Version,
		// Errors, exit codes included, are returned from Run and handled
		// by main.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			playCommand(),
			probeCommand(),
			{
				Name:  "version",
				Usage: l10n.T("Show version information"),
				Action: func(c *cli.Context) error {
					cli.VersionPrinter(c)
					return nil
				},
			},
		},
	}
}

// commonFlags are shared by play and probe.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T("Configuration")},
		&cli.StringFlag{Name: "engine", Aliases: []string{"e"}, Usage: l10n.T("Decode engine (mp4, testsrc)"), Category: l10n.T("Decoding")},
		&cli.StringFlag{Name: "ffmpeg-path", Usage: l10n.T("Path to the ffmpeg executable"), Category: l10n.T("Decoding")},
		&cli.BoolFlag{Name: "mute", Usage: l10n.T("Ignore audio streams"), Category: l10n.T("Playback")},
		&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T("Logging")},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T("Logging")},
		&cli.BoolFlag{Name: "timestamps", Usage: l10n.T("Prefix log lines with timestamps"), Category: l10n.T("Logging")},
	}
}

func playCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.Float64Flag{Name: "scale", Usage: l10n.T("Frame scale factor (1.0 = source size)"), Category: l10n.T("Playback")},
		&cli.StringFlag{Name: "format", Usage: l10n.T("Output pixel format (rgba, bgra)"), Category: l10n.T("Playback")},
		&cli.Int64Flag{Name: "start", Usage: l10n.T("Start position in milliseconds"), Category: l10n.T("Playback")},
		&cli.DurationFlag{Name: "for", Usage: l10n.T("Stop after this long (0 = until interrupted)"), Category: l10n.T("Playback")},
		&cli.Float64Flag{Name: "seek", Usage: l10n.T("Seek to this fraction of the duration (0-1) after opening"), Category: l10n.T("Playback")},
		&cli.StringFlag{Name: "dump-dir", Usage: l10n.T("Directory to save presented frames as PNG"), Category: l10n.T("Debug")},
		&cli.IntFlag{Name: "dump-every", Usage: l10n.T("Save every n-th presented frame"), Category: l10n.T("Debug")},
		&cli.StringFlag{Name: "metrics-addr", Usage: l10n.T("Serve prometheus metrics on this address"), Category: l10n.T("Debug")},
	)

	return &cli.Command{
		Name:      "play",
		Usage:     l10n.T("Play a video source"),
		ArgsUsage: "<source>",
		Flags:     flags,
		Action:    runPlay,
	}
}

func probeCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.BoolFlag{Name: "key-frames", Usage: l10n.T("Measure the key frame interval"), Category: l10n.T("Decoding")},
		&cli.BoolFlag{Name: "decoder-fps", Usage: l10n.T("Measure decoder throughput"), Category: l10n.T("Decoding")},
	)

	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Print stream information for video sources"),
		ArgsUsage: "<source>...",
		Flags:     flags,
		Action:    runProbe,
	}
}

// loadConfig reads --config when given and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("engine") {
		cfg.Engine = c.String("engine")
	}
	if c.IsSet("ffmpeg-path") {
		cfg.FFmpegPath = c.String("ffmpeg-path")
	}
	if c.IsSet("mute") {
		cfg.Mute = c.Bool("mute")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("timestamps") {
		cfg.LogTimestamps = c.Bool("timestamps")
	}
	if c.IsSet("scale") {
		cfg.FrameScale = c.Float64("scale")
	}
	if c.IsSet("format") {
		cfg.Format = c.String("format")
	}
	if c.IsSet("start") {
		cfg.StartMs = c.Int64("start")
	}
	if c.IsSet("dump-dir") {
		cfg.Dump.Dir = c.String("dump-dir")
	}
	if c.IsSet("dump-every") {
		cfg.Dump.Every = c.Int("dump-every")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("key-frames") {
		cfg.ProbeKeyFrames = c.Bool("key-frames")
	}
	if c.IsSet("decoder-fps") {
		cfg.ProbeDecoderFPS = c.Bool("decoder-fps")
	}

	return cfg, cfg.Validate()
}

func newLogger(c *cli.Context, cfg config.Config) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	log := logger.NewConsoleWriters(ports.ParseLogLevel(cfg.LogLevel), c.App.Writer, c.App.ErrWriter)
	if cfg.LogTimestamps {
		log = log.WithTimestamps()
	}
	return log
}

func newEngine(cfg config.Config, log ports.Logger) ports.DecodeEngine {
	if cfg.Engine == config.EngineTestSrc {
		return testsrc.New(log)
	}
	return mp4engine.New(smartdecoder.NewFactory(smartdecoder.Options{FFmpegPath: cfg.FFmpegPath}), log)
}

func newSink(cfg config.Config) ports.FrameSink {
	if cfg.Dump.Dir == "" {
		return nullsink.New()
	}
	return filesink.New(afero.NewOsFs(), cfg.Dump.Dir)
}

func runPlay(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(l10n.T("Exactly one source argument is required"), 2)
	}
	source := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(c, cfg)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("for"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, log)
		defer shutdown()
	}

	var presented atomic.Int64

	opts := cfg.ToPlayerOptions()
	opts.OnVideoInfo = func(info ports.VideoInfo) {
		fmt.Fprintln(c.App.Writer, formatInfo(source, info))
	}
	opts.OnFrame = frameDumper(newSink(cfg), cfg.Dump.Every, &presented, log)

	p := player.New(newEngine(cfg, log), log)
	if err := p.Open(source, opts); err != nil {
		return err
	}
	defer p.Close()

	if c.IsSet("seek") {
		if err := p.SeekToPercent(c.Float64("seek")); err != nil {
			log.Warn("Seek failed: %s", err)
		}
	}

	<-ctx.Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("Interrupted, shutting down...")
	}
	position := p.PlayingMills()
	p.Close()

	log.Info("Presented %d frames, stopped at %d ms", presented.Load(), position)
	return nil
}

func runProbe(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit(l10n.T("At least one source argument is required"), 2)
	}
	sources := c.Args().Slice()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(c, cfg)
	engine := newEngine(cfg, log)

	results := make([]string, len(sources))
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(runtime.NumCPU())
	for i, source := range sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			info, err := probe(engine, log, source, cfg.ToPlayerOptions())
			if err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}
			results[i] = formatInfo(source, info)
			return nil
		})
	}
	err = g.Wait()

	for _, line := range results {
		if line != "" {
			fmt.Fprintln(c.App.Writer, line)
		}
	}
	return err
}

// frameDumper counts presented frames and saves every n-th one to sink.
func frameDumper(sink ports.FrameSink, every int, presented *atomic.Int64, log ports.Logger) func(*player.VideoFrame) {
	every = max(every, 1)
	return func(frame *player.VideoFrame) {
		index := int(presented.Add(1)) - 1
		if !sink.Enabled() || index%every != 0 {
			return
		}
		img, err := frame.Image()
		if err == nil {
			err = sink.SaveFrame(index, img)
		}
		if err != nil {
			log.Warn("Failed to save frame %d: %s", index, err)
		}
	}
}

// probe opens source just long enough to read its VideoInfo.
func probe(engine ports.DecodeEngine, log ports.Logger, source string, opts player.Options) (ports.VideoInfo, error) {
	var info ports.VideoInfo
	p := player.New(engine, log)
	opts.OnVideoInfo = func(vi ports.VideoInfo) {
		info = vi
	}
	opts.OnFrame = nil
	if err := p.Open(source, opts); err != nil {
		return info, err
	}
	p.Close()
	return info, nil
}

// formatInfo renders one line describing a source.
func formatInfo(source string, info ports.VideoInfo) string {
	line := fmt.Sprintf("%s: %s %dx%d %.3f fps, %d frames, %d ms, %s",
		source, info.VideoCodec, info.VideoWidth, info.VideoHeight, info.Fps,
		info.TotalFrames, info.DurationMills, info.PixelFormat)
	if info.Rotation != 0 {
		line += fmt.Sprintf(", rotation %d", info.Rotation)
	}
	if info.HasAudio {
		line += fmt.Sprintf(", audio %d ch %d Hz", info.AudioChannels, info.AudioSampleRate)
	}
	if info.DecoderFPS > 0 {
		line += fmt.Sprintf(", decoder %.1f fps", info.DecoderFPS)
	}
	return line
}

// serveMetrics exposes /metrics on addr and returns a shutdown function.
func serveMetrics(addr string, log ports.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed: %s", err)
		}
	}()
	log.Info("Serving metrics on %s", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
