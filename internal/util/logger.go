package util

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

var logger atomic.Pointer[slog.Logger]

// LogOptions selects the level, encoding and destination of the global logger.
type LogOptions struct {
	Level  string    // debug, info, warn, error
	Format string    // text or json
	Output io.Writer // defaults to stderr
}

// InitLogger initializes the global slog logger with appropriate level
func InitLogger(verbose bool) {
	level := "info"
	if verbose {
		level = "debug"
	}
	_ = ConfigureLogger(LogOptions{Level: level})
}

// ConfigureLogger replaces the global logger.
func ConfigureLogger(opts LogOptions) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		return errors.Errorf("unknown log format %q", opts.Format)
	}

	l := slog.New(handler)
	logger.Store(l)
	slog.SetDefault(l)
	return nil
}

// GetLogger returns the configured logger instance
func GetLogger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	// Fallback initialization with INFO level
	InitLogger(false)
	return logger.Load()
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level %q", s)
	}
}

// IsVerbose checks if verbose mode is enabled by looking at command line arguments
func IsVerbose() bool {
	for _, arg := range os.Args {
		if arg == "--verbose" || arg == "-v" {
			return true
		}
	}
	return false
}
