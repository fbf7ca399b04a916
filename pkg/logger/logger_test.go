package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return FromZap(zap.New(core)), logs
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"nonsense", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestWithComponentAndFields(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.WithComponent("resolver").WithField("intent", "like_control").Info("resolved %s", "ok")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "resolved ok", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "resolver", fields["component"])
	assert.Equal(t, "like_control", fields["intent"])
}

func TestComponentReplacedNotStacked(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.WithComponent("a").WithComponent("b").Warn("x")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "b", logs.All()[0].ContextMap()["component"])
}

func TestLevelFiltering(t *testing.T) {
	l, logs := observed(zapcore.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	assert.Equal(t, 2, logs.Len())
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	l, err := New(Config{Level: "info", Format: "json", OutputFile: path, Component: "test", MaxSize: 1})
	require.NoError(t, err)

	l.Info("hello %d", 42)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello 42"`)
	assert.Contains(t, string(data), `"component":"test"`)
}
