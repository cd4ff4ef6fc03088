package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stayware/bookingcore/internal/infrastructure/config"
)

type Logger struct {
	*zerolog.Logger
}

// NewLogger creates a new structured logger based on configuration
func NewLogger(cfg *config.ObservabilityConfig) *Logger {
	var output io.Writer = os.Stdout

	logLevel := parseLogLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(logLevel)

	if cfg.LogFormat == "text" {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	logger := zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: &logger}
}

// NewNopLogger returns a logger that discards everything (tests).
func NewNopLogger() *Logger {
	logger := zerolog.Nop()
	return &Logger{Logger: &logger}
}

// WithBookingID returns a new logger with booking ID attached
func (l *Logger) WithBookingID(bookingID string) *Logger {
	logger := l.With().Str("booking_id", bookingID).Logger()
	return &Logger{Logger: &logger}
}

// WithHoldToken returns a new logger with hold token attached
func (l *Logger) WithHoldToken(token string) *Logger {
	logger := l.With().Str("hold_token", token).Logger()
	return &Logger{Logger: &logger}
}

// WithRoomType returns a new logger with room type ID attached
func (l *Logger) WithRoomType(roomTypeID string) *Logger {
	logger := l.With().Str("room_type_id", roomTypeID).Logger()
	return &Logger{Logger: &logger}
}

// WithError returns a new logger with error attached
func (l *Logger) WithError(err error) *Logger {
	logger := l.With().Err(err).Logger()
	return &Logger{Logger: &logger}
}

// parseLogLevel converts string to zerolog level
func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
