package logger

import (
	"io"
	"log/slog"
	"os"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger   *slog.Logger
	fileSink *lumberjack.Logger
)

// Init initializes the global logger. With verbose set the level drops to
// debug. A non-empty filePath additionally mirrors log output to a
// rotating file.
func Init(verbose bool, filePath string) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if filePath != "" {
		fileSink = &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		w = io.MultiWriter(os.Stderr, fileSink)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	logger = slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(logger)
}

// Close flushes and closes the rotating file sink, if any
func Close() {
	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}
