// Package logger provides logging implementations.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"
	"github.com/user/vplayer/pkg/ports"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// ConsoleLogger writes translated messages to an output stream, warnings
// and errors to a second one.
type ConsoleLogger struct {
	level      ports.LogLevel
	component  string
	color      bool
	timestamps bool
	out        io.Writer
	errOut     io.Writer
}

// NewConsole creates a console logger on stdout and stderr. Color output is
// enabled when stdout is a terminal.
func NewConsole(level ports.LogLevel) *ConsoleLogger {
	return &ConsoleLogger{
		level:  level,
		color:  isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

// NewConsoleWriters creates a console logger on the given streams. Color is
// enabled only when out is a terminal.
func NewConsoleWriters(level ports.LogLevel, out, errOut io.Writer) *ConsoleLogger {
	l := &ConsoleLogger{level: level, out: out, errOut: errOut}
	if f, ok := out.(*os.File); ok {
		l.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return l
}

// WithTimestamps returns a copy that prefixes every line the way
// FormatLine does.
func (l *ConsoleLogger) WithTimestamps() *ConsoleLogger {
	c := *l
	c.timestamps = true
	return &c
}

func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	l.log(ports.LevelDebug, msg, args...)
}

func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	l.log(ports.LevelInfo, msg, args...)
}

func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.log(ports.LevelWarn, msg, args...)
}

func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	l.log(ports.LevelError, msg, args...)
}

// WithComponent returns a new logger with the specified component name.
func (l *ConsoleLogger) WithComponent(component string) ports.Logger {
	c := *l
	c.component = component
	return &c
}

func (l *ConsoleLogger) log(level ports.LogLevel, msg string, args ...interface{}) {
	if level < l.level || level >= ports.LevelQuiet {
		return
	}

	output := l10n.F(msg, args...)
	if l.component != "" {
		tag := "[" + l.component + "]"
		if l.color {
			tag = colorCyan + tag + colorReset
		}
		output = tag + " " + output
	}
	if l.timestamps {
		output = FormatLine(now(), output)
	}

	if l.color {
		switch level {
		case ports.LevelDebug:
			output = colorGray + output + colorReset
		case ports.LevelWarn:
			output = colorYellow + output + colorReset
		case ports.LevelError:
			output = colorRed + output + colorReset
		}
	}

	if level >= ports.LevelWarn {
		fmt.Fprintln(l.errOut, output)
	} else {
		fmt.Fprintln(l.out, output)
	}
}
