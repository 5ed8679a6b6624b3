// Package logging builds the process-wide structured logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration, typically sourced from CLI flags.
type Config struct {
	// Verbose lowers the threshold to debug and switches to a
	// human-oriented console encoding.
	Verbose bool
	// Quiet raises the threshold to warn. Verbose wins if both are set.
	Quiet bool
}

// New builds a zap logger for a CLI run. Output goes to stderr so that
// generated artifacts on stdout stay clean.
func New(cfg Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true

	switch {
	case cfg.Verbose:
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	case cfg.Quiet:
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	default:
		zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("harnessdoc"), nil
}

// NewNop returns a logger that discards everything. Tests use it so that
// components taking a logger never need nil checks.
func NewNop() *zap.Logger { return zap.NewNop() }
