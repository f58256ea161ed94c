package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const debugLogName = "attendo_debug.log"

// when the UI owns the terminal we cannot log to stdout/stderr,
// so logs go to a file in the OS temp folder instead.
// the returned closer is a no-op when no file was opened
func logInit(debugMode, plain bool) io.Closer {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	var logger *slog.Logger
	var closer io.Closer = nopCloser{}
	if plain {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	} else {
		logFilePath := filepath.Join(os.TempDir(), debugLogName)
		logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			// Fallback to stderr if file creation fails
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))
		} else {
			logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
				Level: level,
			}))
			closer = logFile
		}
		logger.Debug("Logging to file", "log_file", logFilePath)
	}
	if debugMode {
		logger.Info("Running in DEBUG mode")
	}
	slog.SetDefault(logger)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
