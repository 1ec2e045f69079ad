package mocks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/vplayer/pkg/ports"
)

// LogEntry is one recorded log call.
type LogEntry struct {
	Level     ports.LogLevel
	Component string
	Message   string
}

// Logger records every message for later inspection.
type Logger struct {
	mu        *sync.Mutex
	entries   *[]LogEntry
	component string
}

// NewLogger creates a recording logger.
func NewLogger() *Logger {
	return &Logger{mu: &sync.Mutex{}, entries: &[]LogEntry{}}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.add(ports.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.add(ports.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.add(ports.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.add(ports.LevelError, msg, args) }

// WithComponent returns a logger sharing the same record.
func (l *Logger) WithComponent(component string) ports.Logger {
	return &Logger{mu: l.mu, entries: l.entries, component: component}
}

func (l *Logger) add(level ports.LogLevel, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, LogEntry{Level: level, Component: l.component, Message: fmt.Sprintf(msg, args...)})
}

// Entries returns a copy of the recorded entries.
func (l *Logger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), *l.entries...)
}

// Contains reports whether any entry at level contains substr.
func (l *Logger) Contains(level ports.LogLevel, substr string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

var _ ports.Logger = (*Logger)(nil)
