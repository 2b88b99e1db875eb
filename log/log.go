// Package log sets up the zap loggers used by the keysync tools.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encoder defines a log encoder kind.
type Encoder = string

const (
	// ConsoleEncoder represents logging with plain text.
	ConsoleEncoder Encoder = "console"
	// JSONEncoder represents logging with JSON.
	JSONEncoder Encoder = "json"
)

// where logs go by default.
var logWriter io.Writer = os.Stdout

// NewNop creates silent logger.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// New creates a logger with the given encoder kind and level name.
func New(encoder Encoder, level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	enc, err := newEncoder(encoder)
	if err != nil {
		return nil, err
	}
	return NewWithLevel(lvl, enc, logWriter), nil
}

// NewWithLevel creates a logger with a fixed level writing to w.
func NewWithLevel(level zap.AtomicLevel, encoder zapcore.Encoder, w io.Writer) *zap.Logger {
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core)
}

func newEncoder(kind Encoder) (zapcore.Encoder, error) {
	switch kind {
	case ConsoleEncoder, "":
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), nil
	case JSONEncoder:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown log encoder %q", kind)
	}
}
