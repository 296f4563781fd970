// Package logger provides leveled printf-style logging on top of log/slog,
// in text or JSON line format.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// fatalLevel sits above slog.LevelError so Fatal is never filtered.
const fatalLevel = slog.Level(12)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "FATAL"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return fatalLevel
	}
}

// ParseLevel maps a config level name to a Level. Unknown names fall back to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging.
type Logger struct {
	level Level
	json  bool
	slog  *slog.Logger
}

var defaultLogger *Logger

// Init initializes the default logger with the specified level and format.
func Init(level string, format string) {
	initWith(ParseLevel(level), strings.ToLower(format) == "json", os.Stderr)
}

// SetOutput redirects the default logger, keeping its level and format.
func SetOutput(w io.Writer) {
	if defaultLogger == nil {
		initWith(InfoLevel, false, w)
		return
	}
	initWith(defaultLogger.level, defaultLogger.json, w)
}

func initWith(l Level, jsonFormat bool, w io.Writer) {
	opts := &slog.HandlerOptions{
		Level:     l.slogLevel(),
		AddSource: !jsonFormat,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lv, ok := a.Value.Any().(slog.Level); ok && lv >= fatalLevel {
					a.Value = slog.StringValue("FATAL")
				}
			}
			return a
		},
	}
	var h slog.Handler
	if jsonFormat {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	defaultLogger = &Logger{
		level: l,
		json:  jsonFormat,
		slog:  slog.New(h),
	}
}

func output(l Level, format string, args ...interface{}) {
	if defaultLogger == nil {
		return
	}
	ctx := context.Background()
	h := defaultLogger.slog.Handler()
	if !h.Enabled(ctx, l.slogLevel()) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, output and the exported wrapper
	r := slog.NewRecord(time.Now(), l.slogLevel(), fmt.Sprintf(format, args...), pcs[0])
	_ = h.Handle(ctx, r)
}

func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args...)
}

func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

// Fatal logs regardless of level and exits the process.
func Fatal(format string, args ...interface{}) {
	if defaultLogger == nil {
		Init("info", "text")
	}
	output(ErrorLevel+1, format, args...)
	os.Exit(1)
}
