package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"TRACE":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		"ERROR":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestInitialize_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "hestia.log")

	Initialize(Options{Level: "info", LogPath: path, Quiet: true})
	otelzap.Ctx(context.Background()).Info("provision started")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"provision started"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
}

func TestInitialize_UnwritablePathFallsBackToConsole(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	// A regular file cannot be a directory, so opening below it fails.
	Initialize(Options{LogPath: filepath.Join(blocker, "hestia.log"), Quiet: true})
	require.NotNil(t, L())
}

func TestLogCommandLifecycle(t *testing.T) {
	Initialize(Options{LogPath: filepath.Join(t.TempDir(), "h.log"), Quiet: true})

	done := LogCommandLifecycle("status")
	err := errors.New("boom")
	done(&err)

	var ok error
	LogCommandLifecycle("status")(&ok)
	assert.Len(t, GenerateTraceID(), 8)
}

func TestSync_IgnoresTerminalNoise(t *testing.T) {
	assert.True(t, isSyncNoise(errors.New("sync /dev/stderr: invalid argument")))
	assert.True(t, isSyncNoise(errors.New("sync /dev/stdout: inappropriate ioctl for device")))
	assert.False(t, isSyncNoise(errors.New("write /var/log/hestia/hestia.log: no space left on device")))

	Initialize(Options{LogPath: filepath.Join(t.TempDir(), "h.log")})
	L().Info("console and file cores both attached")
	assert.NoError(t, Sync())
}
