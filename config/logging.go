package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-keysync/log"
)

const defaultLoggingLevel = zapcore.InfoLevel

// LoggerConfig holds the logging settings.
type LoggerConfig struct {
	Encoder log.Encoder `mapstructure:"log-encoder"`
	Level   string      `mapstructure:"level"`
}

// DefaultLoggerConfig returns the default logging settings.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Encoder: log.ConsoleEncoder,
		Level:   defaultLoggingLevel.String(),
	}
}

// Validate checks the logging settings.
func (lc *LoggerConfig) Validate() error {
	switch lc.Encoder {
	case log.ConsoleEncoder, log.JSONEncoder:
	default:
		return fmt.Errorf("unknown log encoder %q", lc.Encoder)
	}
	if _, err := zapcore.ParseLevel(lc.Level); err != nil {
		return fmt.Errorf("bad log level: %w", err)
	}
	return nil
}

// Logger creates a logger with these settings.
func (lc *LoggerConfig) Logger() (*zap.Logger, error) {
	return log.New(lc.Encoder, lc.Level)
}
