// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ParseLevel validates a level name from configuration.
func ParseLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "warning":
		return LevelWarn, nil
	case "":
		return LevelInfo, nil
	default:
		return "", fmt.Errorf("invalid log level %q (want debug, info, warn or error)", s)
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.DateTime}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// zerologLevel maps a LogLevel onto zerolog, falling back to info.
func zerologLevel(level LogLevel) zerolog.Level {
	l, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(string(l))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

// NewLogger returns the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each upstream attempt (credential, attempt number)
//   - Cache hits and misses
//   - Profile shape mismatches
//
// Info: Normal operation events
//   - Retry succeeded
//   - Limiter recovered to the base interval
//   - Batch start and completion
//   - Server startup/shutdown
//
// Warn: Conditions the gateway works around
//   - First attempt failed, retrying
//   - Credential entering cooldown
//   - Every credential cooling down (forced selection)
//   - Cache errors (served without cache)
//
// Error: Error conditions requiring attention
//   - Failed invocations after the retry
//   - Expired credentials
//   - Recovered profile panics
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting package (gateway, ratelimit, credential-pool, ...)
//   - call_id: Identifier shared by all lines of one invocation
//   - operation: Catalog operation name
//   - attempt: 1 for the first call, 2 for the retry
//   - credential: Masked session token
//   - interval: Current limiter spacing
//   - error_class: transient, terminal or auth_expired
