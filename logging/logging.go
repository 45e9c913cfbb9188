// Package logging builds the zap loggers used across facemarks.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Release selects JSON production logging; any other mode logs coloured
// console output at debug level.
const Release = "release"

// New returns a logger for mode.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == Release {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return config.Build()
}

// Sync flushes logger, ignoring the errors stdout and stderr report on some
// platforms.
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
