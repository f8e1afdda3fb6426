package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs the service logger: console output at debug level in
// development, JSON at info level otherwise. A non-empty levelName
// (debug, info, warn, ...) overrides the environment default.
func NewLogger(appEnv, levelName string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, levelName)
}

func newLogger(out io.Writer, appEnv, levelName string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelName))); err == nil && levelName != "" {
		level = parsed
	}

	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "listingshots").
		Logger()
}

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly. It keeps the freedom to replace the underlying logger in the
// future while presenting a stable surface area.
type Logger = zerolog.Logger

// LoggerOrDiscard returns logger, or a disabled logger when nil.
func LoggerOrDiscard(logger *Logger) *Logger {
	if logger != nil {
		return logger
	}
	discard := zerolog.New(io.Discard)
	return &discard
}
