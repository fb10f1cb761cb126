package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. Development mode gets the console
// encoder with debug level, everything else the JSON production encoder.
func NewLogger(env string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if env == "development" || env == "" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewNopLogger returns a logger that discards everything, for tests and tools
func NewNopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
