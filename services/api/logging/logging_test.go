package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseLevel(raw), "level %q", raw)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "gridview-api")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestEncoderWritesUTCTimestamps(t *testing.T) {
	enc := zapcore.NewJSONEncoder(encoderConfig())
	entry := zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Date(2024, 1, 1, 12, 0, 0, 500, time.FixedZone("CET", 3600)),
		Message: "tick",
	}

	buf, err := enc.EncodeEntry(entry, nil)
	require.NoError(t, err)
	defer buf.Free()
	assert.Contains(t, buf.String(), `"ts":"2024-01-01T11:00:00.0000005Z"`)
}
