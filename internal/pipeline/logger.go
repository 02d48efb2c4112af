package pipeline

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/tallycam/tallycam-go/internal/logging"
)

// Package-level logger specific to the pipeline service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "pipeline.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "pipeline", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize pipeline file logger at %s: %v. Using console logging.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "pipeline")
		closeLogger = func() error { return nil }
	}
}

// GetLogger returns the package logger.
func GetLogger() *slog.Logger {
	return logger
}

// SetLogLevel adjusts the pipeline service log level at runtime.
func SetLogLevel(level slog.Level) {
	serviceLevelVar.Set(level)
}

// CloseLogger closes the log file and releases resources.
func CloseLogger() error {
	if closeLogger != nil {
		return closeLogger()
	}
	return nil
}
