// Package logging constructs the structured loggers every service binary
// uses, following the zap setup in
// theRebelliousNerd-codenerd/cmd/nerd/main.go: a production JSON config by
// default, switched to debug level when verbose output is requested.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger for component (e.g. "watcher", "ingest"). When
// verbose is true the level is lowered to Debug, matching the teacher's
// --verbose flag behavior.
func New(component string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if os.Getenv("LOG_FORMAT") == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("component", component)), nil
}

// WithFile returns a child logger scoped to a single file path, for logging
// per-file events.
func WithFile(logger *zap.Logger, filePath string) *zap.Logger {
	return logger.With(zap.String("file_path", filePath))
}

// WithJob returns a child logger scoped to a single queue job, for logging
// per-message processing.
func WithJob(logger *zap.Logger, jobID string) *zap.Logger {
	return logger.With(zap.String("job_id", jobID))
}
