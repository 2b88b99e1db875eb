package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithLevel(t *testing.T) {
	var buf bytes.Buffer
	enc, err := newEncoder(JSONEncoder)
	require.NoError(t, err)
	logger := NewWithLevel(zap.NewAtomicLevelAt(zap.InfoLevel), enc, &buf)
	logger.Debug("hidden")
	logger.Info("shown", zap.Int("count", 3))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "info", entry["level"])
	require.EqualValues(t, 3, entry["count"])
}

func TestNew(t *testing.T) {
	_, err := New(ConsoleEncoder, "debug")
	require.NoError(t, err)
	_, err = New(JSONEncoder, "no-such-level")
	require.Error(t, err)
	_, err = New("xml", "info")
	require.Error(t, err)
}
