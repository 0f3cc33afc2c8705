package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		want      zapcore.Level
	}{
		{0, false, zapcore.InfoLevel},
		{2, false, zapcore.InfoLevel},
		{3, false, zapcore.DebugLevel},
		{5, false, zapcore.DebugLevel},
		{0, true, zapcore.WarnLevel},
		{4, true, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.verbosity, tt.quiet), "verbosity=%d quiet=%v", tt.verbosity, tt.quiet)
	}
}

func TestNew_WritesToOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})

	log.Debug("hidden")
	log.Info("relay marker removed", zap.String("host", "web-1"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "relay marker removed")
	assert.Contains(t, out, `"host": "web-1"`)
}

func TestNew_QuietDropsInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf, Quiet: true, Verbosity: 3})

	log.Info("chatty")
	log.Warn("careful")

	assert.NotContains(t, buf.String(), "chatty")
	assert.Contains(t, buf.String(), "careful")
}
