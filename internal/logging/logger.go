// Package logging builds the zap loggers used across dirstat.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Level is a zap level name; empty means info.
	Level string
	// File receives log output when set. The terminal UI owns stdout and
	// stderr, so it only ever logs to a file.
	File string
	// Console writes human readable output to stderr.
	Console bool
}

// New returns a no-op logger when neither a file nor the console is requested.
func New(options Options) (*zap.Logger, error) {
	if options.File == "" && !options.Console {
		return zap.NewNop(), nil
	}
	level := zapcore.InfoLevel
	if options.Level != "" {
		parsed, err := zapcore.ParseLevel(options.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", options.Level, err)
		}
		level = parsed
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = nil
	config.ErrorOutputPaths = []string{"stderr"}
	if options.Console {
		config.Encoding = "console"
		config.EncoderConfig.TimeKey = ""
		config.OutputPaths = append(config.OutputPaths, "stderr")
	}
	if options.File != "" {
		if err := os.MkdirAll(filepath.Dir(options.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		config.OutputPaths = append(config.OutputPaths, options.File)
		if !options.Console {
			config.ErrorOutputPaths = []string{options.File}
		}
	}
	return config.Build()
}
