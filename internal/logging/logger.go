package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects how the root logger is built.
type Options struct {
	Level       string // debug, info, warn, error
	Environment string // "production" samples and omits stack traces on warnings
	// Stdio routes every log line to stderr, keeping stdout free for the MCP
	// transport.
	Stdio bool
}

// New builds the root JSON logger. Components receive named children of it.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config
	if opts.Environment == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Encoding = "json"

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	config.Level = zap.NewAtomicLevelAt(level)

	if opts.Stdio {
		config.OutputPaths = []string{"stderr"}
	}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Close flushes buffered entries. Sync errors on terminals are ignored.
func Close(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
