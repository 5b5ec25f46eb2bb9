// Package log provides structured logging for the Lambda handler and the
// eksproxy CLI, built on log/slog.
package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

var logger *slog.Logger

// Options configures the logger.
type Options struct {
	// Verbose enables debug-level output
	Verbose bool
	// JSONFormat forces JSON output even on an interactive terminal
	JSONFormat bool
	// Stderr is the writer for log output (defaults to os.Stderr)
	Stderr io.Writer
}

// Init initializes the global logger with the given options. Output is JSON
// unless stderr is an interactive terminal, so records land in CloudWatch as
// structured events.
func Init(opts Options) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if !opts.JSONFormat && isTerminal(stderr) {
		handler = slog.NewTextHandler(stderr, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(stderr, handlerOpts)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

// With returns a logger with additional context.
func With(args ...any) *slog.Logger {
	return logger.With(args...)
}

// SetOutput sets the output writer (for testing).
func SetOutput(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

func init() {
	// Default logger until Init is called
	logger = slog.Default()
}
