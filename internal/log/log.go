// Package log provides structured logging for shelfscan.
// It wraps zerolog with sensible defaults for production use.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	once.Do(func() {
		logger = newLogger(os.Stdout, level, os.Getenv("GO_ENV") == "production")
	})
}

func newLogger(out io.Writer, level string, production bool) zerolog.Logger {
	var w io.Writer = out
	// JSON in production, human-readable console otherwise
	if !production {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// L returns the global logger instance.
func L() *zerolog.Logger {
	Init("info")
	return &logger
}

// Debug logs at debug level. args are alternating key/value pairs.
func Debug(msg string, args ...any) {
	emit(L().Debug(), msg, args)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	emit(L().Info(), msg, args)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	emit(L().Warn(), msg, args)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	emit(L().Error(), msg, args)
}

// With returns a child logger with the given key/value attributes.
func With(args ...any) zerolog.Logger {
	return L().With().Fields(args).Logger()
}

func emit(e *zerolog.Event, msg string, args []any) {
	if len(args) > 0 {
		e = e.Fields(args)
	}
	e.Msg(msg)
}
