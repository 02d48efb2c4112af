package api

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/tallycam/tallycam-go/internal/logging"
)

// Package-level logger specific to the API service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "api.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "api", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize api file logger at %s: %v. Using console logging.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "api")
		closeLogger = func() error { return nil }
	}
}

// GetLogger returns the package logger.
func GetLogger() *slog.Logger {
	return logger
}

// SetLogLevel adjusts the api service log level at runtime.
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
