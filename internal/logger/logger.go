package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. Development environments get a console writer,
// everything else emits JSON.
func New(env, level string) zerolog.Logger {
	return NewWithWriter(env, level, os.Stdout)
}

func NewWithWriter(env, level string, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if isDevelopment(env) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("service", "settlement").
		Str("env", env).
		Logger()
}

func isDevelopment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "dev", "development", "local":
		return true
	default:
		return false
	}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
