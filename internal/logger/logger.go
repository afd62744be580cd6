// Package logger holds the process-wide structured logger used by the memory
// manager packages.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// EnvAllocLog enables debug logging of allocator decisions to stderr when set.
const EnvAllocLog = "FRAMEKIT_LOG_ALLOC"

// L is the global logger instance. It discards all output unless Init is
// called or EnvAllocLog is set.
var L = defaultLogger()

func defaultLogger() *slog.Logger {
	if os.Getenv(EnvAllocLog) != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return Discard()
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Output  io.Writer  // Destination. Default: os.Stderr
	LogFile string     // Append to this file instead of Output when set
	Level   slog.Level // Minimum log level. Default: LevelInfo
	JSON    bool       // Emit JSON records instead of text
}

// Init replaces L according to opts. The returned closer releases a log file
// opened for opts.LogFile and is never nil.
func Init(opts Options) (func() error, error) {
	noop := func() error { return nil }
	if !opts.Enabled {
		L = Discard()
		return noop, nil
	}

	out := opts.Output
	closer := noop
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return noop, err
		}
		out = f
		closer = f.Close
	}
	if out == nil {
		out = os.Stderr
	}

	ho := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(out, ho))
	} else {
		L = slog.New(slog.NewTextHandler(out, ho))
	}
	return closer, nil
}

// For returns L tagged with a component name.
func For(component string) *slog.Logger {
	return L.With("component", component)
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
