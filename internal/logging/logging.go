package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Settings is the subset of configuration the logger depends on.
type Settings interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// New builds the application logger. DEV gets a human readable console
// writer, every other environment gets JSON lines on stderr.
func New(settings Settings) zerolog.Logger {
	return NewWithWriter(settings, os.Stderr)
}

func NewWithWriter(settings Settings, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(settings.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if settings.GetEnv() == "DEV" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", settings.GetAppName()).
		Logger()
}
