// Package logging is the ambient logger every processor in this module
// writes through. The teacher repository never pulls in a structured
// logging library anywhere in its tree — it logs with fmt.Printf and
// fmt.Errorf wraps throughout internal/database, internal/services, and
// app.go. This package keeps that same style, just collected in one
// place instead of repeated ad hoc at each call site.
package logging

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Level controls which messages reach the output stream.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(LevelInfo))
}

// SetVerbose raises the minimum level to Debug when true, per spec §6's
// "a verbose flag raising the default log level to Debug".
func SetVerbose(verbose bool) {
	if verbose {
		minLevel.Store(int32(LevelDebug))
	} else {
		minLevel.Store(int32(LevelInfo))
	}
}

// Logger tags every line it emits with a component name, mirroring the
// per-service fmt.Printf prefixes in the teacher (e.g. "Migration %s: ...").
type Logger struct {
	component string
}

// New returns a Logger for the named component (e.g. "orchestrator", "transport").
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if int32(level) < minLevel.Load() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s [%s] %s: %s\n", time.Now().Format(time.RFC3339), level, l.component, msg)
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }
