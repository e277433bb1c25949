package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Formats accepted by Config. The zero value means FormatPretty.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

// Config controls the verbosity and output format of a Logger.
type Config struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn or error. Defaults to info.
	Format string `json:"format,omitempty"` // pretty or json. Defaults to pretty.

	_ struct{} `additionalProperties:"false"`
}

// Logger is a thin leveled wrapper around zerolog. Packages take a
// *Logger instead of depending on the logging backend directly.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger returns a logger writing to stderr according to c.
func NewLogger(c Config) (*Logger, error) {
	return newLogger(c, os.Stderr)
}

func newLogger(c Config, w io.Writer) (*Logger, error) {
	level := zerolog.InfoLevel
	if c.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(strings.ToLower(c.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q", c.Level)
		}
	}

	switch c.Format {
	case "", FormatPretty:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case FormatJSON:
	default:
		return nil, fmt.Errorf("invalid log format %q (valid formats: %s, %s)", c.Format, FormatPretty, FormatJSON)
	}

	return &Logger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}, nil
}

// Output returns a copy of the logger writing raw JSON to w. Used by
// tests to capture log lines.
func (l *Logger) Output(w io.Writer) *Logger {
	return &Logger{logger: zerolog.New(w).Level(l.logger.GetLevel()).With().Timestamp().Logger()}
}

// WithField returns a logger that attaches the given field to every line.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}
