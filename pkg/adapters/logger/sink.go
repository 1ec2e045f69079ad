package logger

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/user/vplayer/pkg/ports"
)

// Sink receives every formatted log line emitted through a SinkLogger.
type Sink func(level ports.LogLevel, line string)

var (
	installed atomic.Pointer[Sink]

	defaultOut    io.Writer = os.Stdout
	defaultErrOut io.Writer = os.Stderr

	now = time.Now
)

// InstallSink routes all SinkLogger output to fn. Passing nil is the same
// as UninstallSink.
func InstallSink(fn Sink) {
	if fn == nil {
		installed.Store(nil)
		return
	}
	installed.Store(&fn)
}

// UninstallSink restores the default per-level console output.
func UninstallSink() {
	installed.Store(nil)
}

// FormatLine prefixes msg with a millisecond timestamp.
func FormatLine(t time.Time, msg string) string {
	return "[" + t.Format("2006-01-02 15:04:05.000") + "] " + msg
}

// SinkLogger writes timestamped lines to the installed sink, or to the
// default outputs when no sink is installed.
type SinkLogger struct {
	level     ports.LogLevel
	component string
}

// NewSinkLogger creates a logger filtered at level.
func NewSinkLogger(level ports.LogLevel) *SinkLogger {
	return &SinkLogger{level: level}
}

func (l *SinkLogger) Debug(msg string, args ...interface{}) { l.log(ports.LevelDebug, msg, args...) }
func (l *SinkLogger) Info(msg string, args ...interface{})  { l.log(ports.LevelInfo, msg, args...) }
func (l *SinkLogger) Warn(msg string, args ...interface{})  { l.log(ports.LevelWarn, msg, args...) }
func (l *SinkLogger) Error(msg string, args ...interface{}) { l.log(ports.LevelError, msg, args...) }

// WithComponent returns a logger that tags lines with component.
func (l *SinkLogger) WithComponent(component string) ports.Logger {
	return &SinkLogger{level: l.level, component: component}
}

func (l *SinkLogger) log(level ports.LogLevel, msg string, args ...interface{}) {
	if level < l.level || level >= ports.LevelQuiet {
		return
	}

	text := l10n.F(msg, args...)
	if l.component != "" {
		text = "[" + l.component + "] " + text
	}
	line := FormatLine(now(), text)

	if fn := installed.Load(); fn != nil {
		(*fn)(level, line)
		return
	}

	switch level {
	case ports.LevelWarn:
		fmt.Fprintln(defaultOut, "[Warning] "+line)
	case ports.LevelError:
		fmt.Fprintln(defaultErrOut, line)
	default:
		fmt.Fprintln(defaultOut, line)
	}
}
