// Package logging provides the side-channel diagnostic logger every
// long-running operation writes to instead of stdout, which the MCP
// stdio protocol reserves exclusively for JSON-RPC frames (spec.md
// §4.10). Wraps the standard log.Logger around a rotating
// lumberjack.v2 sink, the same rotation shape the teacher configures
// for its own file logs.
package logging

import (
	"io"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a log verbosity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger filters by level before writing to an underlying *log.Logger.
type Logger struct {
	level Level
	std   *log.Logger
}

// New builds a Logger writing to filename with rotation, at the given
// level. filename may be empty, in which case output is discarded.
func New(filename string, level Level) *Logger {
	var w io.Writer
	if filename == "" {
		w = io.Discard
	} else {
		w = &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return &Logger{level: level, std: log.New(w, "", log.LstdFlags)}
}

// Discard returns a Logger that writes nothing, for use in tests.
func Discard() *Logger {
	return &Logger{level: LevelError + 1, std: log.New(io.Discard, "", 0)}
}

func (l *Logger) logf(level Level, prefix, format string, args ...any) {
	if level < l.level {
		return
	}
	l.std.Printf(prefix+" "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, "[DEBUG]", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, "[INFO]", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, "[WARN]", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, "[ERROR]", format, args...) }

// Printf satisfies rebuild.Logger, routing progress messages through at
// info level.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }
